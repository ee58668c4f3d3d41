package agentservice

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Client is the caller side of agent_service.AIService.
type Client interface {
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
	ExtractFeatures(ctx context.Context, in *FeatureExtractRequest, opts ...grpc.CallOption) (*FeatureExtractResponse, error)
	SaveExtractedRecord(ctx context.Context, in *ExtractedRecord, opts ...grpc.CallOption) error
	GetExtractionHistory(ctx context.Context, opts ...grpc.CallOption) (*ExtractionHistoryResponse, error)
}

type client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) Client {
	return &client{cc: cc}
}

func (c *client) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := newMessage(pingResponseDesc)
	if err := c.cc.Invoke(ctx, PingMethod, in.toProto(), out, opts...); err != nil {
		return nil, err
	}
	return pingResponseFrom(out), nil
}

func (c *client) ExtractFeatures(ctx context.Context, in *FeatureExtractRequest, opts ...grpc.CallOption) (*FeatureExtractResponse, error) {
	out := newMessage(extractResponseDesc)
	if err := c.cc.Invoke(ctx, ExtractFeaturesMethod, in.toProto(), out, opts...); err != nil {
		return nil, err
	}
	return extractResponseFrom(out), nil
}

func (c *client) SaveExtractedRecord(ctx context.Context, in *ExtractedRecord, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, SaveExtractedRecordMethod, in.toProto(), newMessage(emptyDesc), opts...)
}

func (c *client) GetExtractionHistory(ctx context.Context, opts ...grpc.CallOption) (*ExtractionHistoryResponse, error) {
	out := newMessage(historyResponseDesc)
	if err := c.cc.Invoke(ctx, GetExtractionHistoryMethod, newMessage(emptyDesc), out, opts...); err != nil {
		return nil, err
	}
	return historyResponseFrom(out), nil
}

// Server is the worker side of agent_service.AIService.
type Server interface {
	Ping(ctx context.Context, in *PingRequest) (*PingResponse, error)
	ExtractFeatures(ctx context.Context, in *FeatureExtractRequest) (*FeatureExtractResponse, error)
	SaveExtractedRecord(ctx context.Context, in *ExtractedRecord) error
	GetExtractionHistory(ctx context.Context) (*ExtractionHistoryResponse, error)
}

func RegisterServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ping",
			Handler: unaryHandler(pingRequestDescFn, PingMethod, func(ctx context.Context, srv Server, in protoreflect.Message) (proto.Message, error) {
				resp, err := srv.Ping(ctx, pingRequestFrom(in))
				if err != nil {
					return nil, err
				}
				return resp.toProto(), nil
			}),
		},
		{
			MethodName: "ExtractFeatures",
			Handler: unaryHandler(extractRequestDescFn, ExtractFeaturesMethod, func(ctx context.Context, srv Server, in protoreflect.Message) (proto.Message, error) {
				resp, err := srv.ExtractFeatures(ctx, extractRequestFrom(in))
				if err != nil {
					return nil, err
				}
				return resp.toProto(), nil
			}),
		},
		{
			MethodName: "SaveExtractedRecord",
			Handler: unaryHandler(recordDescFn, SaveExtractedRecordMethod, func(ctx context.Context, srv Server, in protoreflect.Message) (proto.Message, error) {
				rec := recordFrom(in)
				if err := srv.SaveExtractedRecord(ctx, &rec); err != nil {
					return nil, err
				}
				return newMessage(emptyDesc), nil
			}),
		},
		{
			MethodName: "GetExtractionHistory",
			Handler: unaryHandler(emptyDescFn, GetExtractionHistoryMethod, func(ctx context.Context, srv Server, _ protoreflect.Message) (proto.Message, error) {
				resp, err := srv.GetExtractionHistory(ctx)
				if err != nil {
					return nil, err
				}
				return resp.toProto(), nil
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agent_service.proto",
}

// Descriptors are filled in by init, after serviceDesc is initialised, so the
// handlers look them up lazily.
func pingRequestDescFn() protoreflect.MessageDescriptor    { return pingRequestDesc }
func extractRequestDescFn() protoreflect.MessageDescriptor { return extractRequestDesc }
func recordDescFn() protoreflect.MessageDescriptor         { return recordDesc }
func emptyDescFn() protoreflect.MessageDescriptor          { return emptyDesc }

type unaryFunc func(ctx context.Context, srv Server, in protoreflect.Message) (proto.Message, error)

func unaryHandler(input func() protoreflect.MessageDescriptor, fullMethod string, call unaryFunc) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := dynamicpb.NewMessage(input())
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(ctx, srv.(Server), req.(*dynamicpb.Message))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		return interceptor(ctx, in, info, handler)
	}
}
