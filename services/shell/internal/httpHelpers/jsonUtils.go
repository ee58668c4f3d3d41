package httpHelpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"structview/agent-shell/pkg/shared/defs"
)

const maxBodySize = 4 << 20

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, defs.ErrorReply{Msg: msg})
}

// WriteKindError reports a failed bridge call along with its kind.
func WriteKindError(w http.ResponseWriter, status int, msg, kind string) {
	WriteJSON(w, status, defs.ErrorReply{Msg: msg, Kind: kind})
}

func WriteOutput(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Error encoding JSON", "error", err)
		http.Error(w, "Error encoding JSON", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Debug("Error writing response", "error", err)
	}
}

// ReadJSON decodes a single JSON value from the request body into v.
func ReadJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
