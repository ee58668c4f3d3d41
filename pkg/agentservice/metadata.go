package agentservice

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// RequestIDKey is the metadata key that carries the shell's request id to the worker.
const RequestIDKey = "x-structview-request-id"

// WithRequestID attaches id to the outgoing metadata of ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, RequestIDKey, id)
}

// OutgoingRequestID returns the request id previously attached with WithRequestID.
func OutgoingRequestID(ctx context.Context) string {
	return first(metadata.FromOutgoingContext(ctx))
}

// IncomingRequestID returns the request id sent by the shell, if any.
func IncomingRequestID(ctx context.Context) string {
	return first(metadata.FromIncomingContext(ctx))
}

func first(md metadata.MD, ok bool) string {
	if !ok {
		return ""
	}
	if vals := md.Get(RequestIDKey); len(vals) > 0 {
		return vals[len(vals)-1]
	}
	return ""
}
