package agentservice

import (
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

type PingRequest struct {
	Message string
}

type PingResponse struct {
	Reply string
}

type FeatureExtractRequest struct {
	PageUrl          string
	PageText         string
	ExtractionFields []string
}

// FeatureExtractResponse carries the worker's result. ErrorMessage is the
// worker's own report of a semantic failure; it is data, not an RPC error.
type FeatureExtractResponse struct {
	ExtractedJson string
	ErrorMessage  string
}

type ExtractedRecord struct {
	Url      string
	DataJson string
	// SavedAt is unix seconds, set by the worker when zero.
	SavedAt int64
}

type ExtractionHistoryResponse struct {
	Records []ExtractedRecord
}

func (r *PingRequest) toProto() *dynamicpb.Message {
	m := newMessage(pingRequestDesc)
	setString(m, "message", r.Message)
	return m
}

func pingRequestFrom(m protoreflect.Message) *PingRequest {
	return &PingRequest{Message: getString(m, "message")}
}

func (r *PingResponse) toProto() *dynamicpb.Message {
	m := newMessage(pingResponseDesc)
	setString(m, "reply", r.Reply)
	return m
}

func pingResponseFrom(m protoreflect.Message) *PingResponse {
	return &PingResponse{Reply: getString(m, "reply")}
}

func (r *FeatureExtractRequest) toProto() *dynamicpb.Message {
	m := newMessage(extractRequestDesc)
	setString(m, "page_url", r.PageUrl)
	setString(m, "page_text", r.PageText)
	fields := m.Mutable(extractRequestDesc.Fields().ByName("extraction_fields")).List()
	for _, f := range r.ExtractionFields {
		fields.Append(protoreflect.ValueOfString(f))
	}
	return m
}

func extractRequestFrom(m protoreflect.Message) *FeatureExtractRequest {
	req := &FeatureExtractRequest{
		PageUrl:  getString(m, "page_url"),
		PageText: getString(m, "page_text"),
	}
	list := m.Get(extractRequestDesc.Fields().ByName("extraction_fields")).List()
	for i := 0; i < list.Len(); i++ {
		req.ExtractionFields = append(req.ExtractionFields, list.Get(i).String())
	}
	return req
}

func (r *FeatureExtractResponse) toProto() *dynamicpb.Message {
	m := newMessage(extractResponseDesc)
	setString(m, "extracted_json", r.ExtractedJson)
	setString(m, "error_message", r.ErrorMessage)
	return m
}

func extractResponseFrom(m protoreflect.Message) *FeatureExtractResponse {
	return &FeatureExtractResponse{
		ExtractedJson: getString(m, "extracted_json"),
		ErrorMessage:  getString(m, "error_message"),
	}
}

func (r *ExtractedRecord) fill(m protoreflect.Message) {
	setString(m, "url", r.Url)
	setString(m, "data_json", r.DataJson)
	m.Set(recordDesc.Fields().ByName("saved_at"), protoreflect.ValueOfInt64(r.SavedAt))
}

func (r *ExtractedRecord) toProto() *dynamicpb.Message {
	m := newMessage(recordDesc)
	r.fill(m)
	return m
}

func recordFrom(m protoreflect.Message) ExtractedRecord {
	return ExtractedRecord{
		Url:      getString(m, "url"),
		DataJson: getString(m, "data_json"),
		SavedAt:  m.Get(recordDesc.Fields().ByName("saved_at")).Int(),
	}
}

func (r *ExtractionHistoryResponse) toProto() *dynamicpb.Message {
	m := newMessage(historyResponseDesc)
	list := m.Mutable(historyResponseDesc.Fields().ByName("records")).List()
	for i := range r.Records {
		elem := list.NewElement()
		r.Records[i].fill(elem.Message())
		list.Append(elem)
	}
	return m
}

func historyResponseFrom(m protoreflect.Message) *ExtractionHistoryResponse {
	resp := &ExtractionHistoryResponse{}
	list := m.Get(historyResponseDesc.Fields().ByName("records")).List()
	for i := 0; i < list.Len(); i++ {
		resp.Records = append(resp.Records, recordFrom(list.Get(i).Message()))
	}
	return resp
}
