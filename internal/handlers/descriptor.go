package handlers

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoFile is the path the service descriptor is registered under
const ProtoFile = "schemareg/v1/schema_registry.proto"

// FileDescriptor describes the SchemaRegistry service to server reflection.
// It is registered in protoregistry.GlobalFiles when the package loads.
var FileDescriptor = mustRegisterFile()

func mustRegisterFile() protoreflect.FileDescriptor {
	fd, err := buildFile(protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("schemareg: %v", err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("schemareg: %v", err))
	}
	return fd
}

// buildFile assembles the descriptor of a service whose methods all map Struct to Struct
func buildFile(deps protodesc.Resolver) (protoreflect.FileDescriptor, error) {
	structFile := (&structpb.Struct{}).ProtoReflect().Descriptor().ParentFile()
	structName := "." + string((&structpb.Struct{}).ProtoReflect().Descriptor().FullName())

	service := &descriptorpb.ServiceDescriptorProto{Name: proto.String("SchemaRegistry")}
	for _, name := range MethodNames() {
		service.Method = append(service.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(structName),
			OutputType: proto.String(structName),
		})
	}

	file := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(ProtoFile),
		Package:    proto.String("schemareg.v1"),
		Dependency: []string{structFile.Path()},
		Service:    []*descriptorpb.ServiceDescriptorProto{service},
		Syntax:     proto.String("proto3"),
	}
	fd, err := protodesc.NewFile(file, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", ProtoFile, err)
	}
	return fd, nil
}
