// Package agentservice holds the gRPC contract between the shell and its
// worker: the agent_service.AIService service and its messages.
//
// The schema is assembled from descriptors at init time and messages travel as
// dynamicpb values, so the wire format matches agent_service.proto without a
// protoc step in the build.
package agentservice

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	packageName = "agent_service"
	ServiceName = packageName + ".AIService"

	PingMethod                 = "/" + ServiceName + "/Ping"
	ExtractFeaturesMethod      = "/" + ServiceName + "/ExtractFeatures"
	SaveExtractedRecordMethod  = "/" + ServiceName + "/SaveExtractedRecord"
	GetExtractionHistoryMethod = "/" + ServiceName + "/GetExtractionHistory"
)

var (
	fileDesc protoreflect.FileDescriptor

	pingRequestDesc     protoreflect.MessageDescriptor
	pingResponseDesc    protoreflect.MessageDescriptor
	extractRequestDesc  protoreflect.MessageDescriptor
	extractResponseDesc protoreflect.MessageDescriptor
	recordDesc          protoreflect.MessageDescriptor
	emptyDesc           protoreflect.MessageDescriptor
	historyResponseDesc protoreflect.MessageDescriptor
)

func init() {
	fd, err := protodesc.NewFile(schema(), nil)
	if err != nil {
		panic(fmt.Errorf("agentservice: invalid schema: %w", err))
	}
	fileDesc = fd

	msgs := fd.Messages()
	pingRequestDesc = msgs.ByName("PingRequest")
	pingResponseDesc = msgs.ByName("PingResponse")
	extractRequestDesc = msgs.ByName("FeatureExtractRequest")
	extractResponseDesc = msgs.ByName("FeatureExtractResponse")
	recordDesc = msgs.ByName("ExtractedRecord")
	emptyDesc = msgs.ByName("Empty")
	historyResponseDesc = msgs.ByName("ExtractionHistoryResponse")
}

// FileDescriptor exposes the service schema, e.g. for reflection.
func FileDescriptor() protoreflect.FileDescriptor {
	return fileDesc
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String("." + packageName + "." + typeName),
	}
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func method(name, in, out string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String("." + packageName + "." + in),
		OutputType: proto.String("." + packageName + "." + out),
	}
}

func schema() *descriptorpb.FileDescriptorProto {
	const (
		str = descriptorpb.FieldDescriptorProto_TYPE_STRING
		i64 = descriptorpb.FieldDescriptorProto_TYPE_INT64
	)
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("agent_service.proto"),
		Package: proto.String(packageName),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("PingRequest", scalar("message", 1, str)),
			message("PingResponse", scalar("reply", 1, str)),
			message("FeatureExtractRequest",
				scalar("page_url", 1, str),
				scalar("page_text", 2, str),
				repeated(scalar("extraction_fields", 3, str)),
			),
			message("FeatureExtractResponse",
				scalar("extracted_json", 1, str),
				scalar("error_message", 2, str),
			),
			message("ExtractedRecord",
				scalar("url", 1, str),
				scalar("data_json", 2, str),
				scalar("saved_at", 3, i64),
			),
			message("Empty"),
			message("ExtractionHistoryResponse", repeated(messageField("records", 1, "ExtractedRecord"))),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("AIService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("Ping", "PingRequest", "PingResponse"),
				method("ExtractFeatures", "FeatureExtractRequest", "FeatureExtractResponse"),
				method("SaveExtractedRecord", "ExtractedRecord", "Empty"),
				method("GetExtractionHistory", "Empty", "ExtractionHistoryResponse"),
			},
		}},
	}
}

func newMessage(desc protoreflect.MessageDescriptor) *dynamicpb.Message {
	return dynamicpb.NewMessage(desc)
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(m.Descriptor().Fields().ByName(name)).String()
}

func setString(m protoreflect.Message, name protoreflect.Name, v string) {
	m.Set(m.Descriptor().Fields().ByName(name), protoreflect.ValueOfString(v))
}
