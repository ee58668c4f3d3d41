package api

import (
	"net/http"
	"time"

	"structview/agent-shell/pkg/agentservice"
	"structview/agent-shell/pkg/shared/defs"
	"structview/agent-shell/services/shell/internal/bridge"
	"structview/agent-shell/services/shell/internal/httpHelpers"
)

// statusClientClosedRequest is used when the caller went away mid-call.
const statusClientClosedRequest = 499

func statusForKind(kind bridge.Kind) int {
	switch kind {
	case bridge.KindUnavailable:
		return http.StatusServiceUnavailable
	case bridge.KindConnection, bridge.KindRemote:
		return http.StatusBadGateway
	case bridge.KindTimeout:
		return http.StatusGatewayTimeout
	case bridge.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeBridgeError reports a failed call. The bridge has already logged it.
func writeBridgeError(w http.ResponseWriter, err error) {
	kind := bridge.KindOf(err)
	httpHelpers.WriteKindError(w, statusForKind(kind), err.Error(), string(kind))
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var body defs.PingBody
	if err := httpHelpers.ReadJSON(r, &body); err != nil {
		httpHelpers.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	reply, err := s.bridge.Ping(r.Context(), body.Message)
	httpHelpers.WriteTimings(w, httpHelpers.Timings{"bridge": time.Since(start)})
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	httpHelpers.WriteOutput(w, defs.PingReply{Reply: reply})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var body defs.ExtractBody
	if err := httpHelpers.ReadJSON(r, &body); err != nil {
		httpHelpers.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	res, err := s.bridge.ExtractFeatures(r.Context(), agentservice.FeatureExtractRequest{
		PageUrl:          body.Url,
		PageText:         body.Text,
		ExtractionFields: body.Fields,
	})
	httpHelpers.WriteTimings(w, httpHelpers.Timings{"bridge": time.Since(start)})
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	httpHelpers.WriteOutput(w, defs.ExtractReply{
		ExtractedJson: res.ExtractedJson,
		ErrorMessage:  res.ErrorMessage,
	})
}

func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	var body defs.RecordBody
	if err := httpHelpers.ReadJSON(r, &body); err != nil {
		httpHelpers.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Url == "" {
		httpHelpers.WriteError(w, http.StatusBadRequest, "url is required")
		return
	}

	start := time.Now()
	err := s.bridge.SaveExtractedRecord(r.Context(), agentservice.ExtractedRecord{
		Url:      body.Url,
		DataJson: body.DataJson,
	})
	httpHelpers.WriteTimings(w, httpHelpers.Timings{"bridge": time.Since(start)})
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	httpHelpers.WriteOutput(w, defs.SaveReply{Success: true})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	records, err := s.bridge.ExtractionHistory(r.Context())
	httpHelpers.WriteTimings(w, httpHelpers.Timings{"bridge": time.Since(start)})
	if err != nil {
		writeBridgeError(w, err)
		return
	}

	items := make([]defs.RecordItem, 0, len(records))
	for _, rec := range records {
		items = append(items, defs.RecordItem{Url: rec.Url, DataJson: rec.DataJson, SavedAt: rec.SavedAt})
	}
	httpHelpers.WriteOutput(w, items)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	httpHelpers.WriteOutput(w, s.status.Status())
}
