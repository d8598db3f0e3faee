package handlers

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "schemareg.v1.SchemaRegistry"

// SchemaRegistryServer is the server API of the SchemaRegistry service.
// Every method takes and returns a google.protobuf.Struct.
type SchemaRegistryServer interface {
	DefinePrim(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CanApply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Apply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Remove(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HasSchema(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListApplied(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Set(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HasAuthoredValue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTargets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetTargets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProperties(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DescribeSchema(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSchemas(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WriteCatalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateCatalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReadCatalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCatalogVersions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(SchemaRegistryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var registryMethods = map[string]unaryCall{
	"DefinePrim":          SchemaRegistryServer.DefinePrim,
	"CanApply":            SchemaRegistryServer.CanApply,
	"Apply":               SchemaRegistryServer.Apply,
	"Remove":              SchemaRegistryServer.Remove,
	"HasSchema":           SchemaRegistryServer.HasSchema,
	"ListApplied":         SchemaRegistryServer.ListApplied,
	"Get":                 SchemaRegistryServer.Get,
	"Set":                 SchemaRegistryServer.Set,
	"HasAuthoredValue":    SchemaRegistryServer.HasAuthoredValue,
	"GetTargets":          SchemaRegistryServer.GetTargets,
	"SetTargets":          SchemaRegistryServer.SetTargets,
	"ListProperties":      SchemaRegistryServer.ListProperties,
	"DescribeSchema":      SchemaRegistryServer.DescribeSchema,
	"ListSchemas":         SchemaRegistryServer.ListSchemas,
	"WriteCatalog":        SchemaRegistryServer.WriteCatalog,
	"ValidateCatalog":     SchemaRegistryServer.ValidateCatalog,
	"ReadCatalog":         SchemaRegistryServer.ReadCatalog,
	"ListCatalogVersions": SchemaRegistryServer.ListCatalogVersions,
}

// ServiceDesc describes the SchemaRegistry service for grpc.Server.RegisterService
var ServiceDesc = newServiceDesc()

func newServiceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*SchemaRegistryServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    ProtoFile,
	}
	for _, name := range MethodNames() {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(name, registryMethods[name]),
		})
	}
	return desc
}

// MethodNames returns the unary method names in declaration order
func MethodNames() []string {
	return []string{
		"DefinePrim", "CanApply", "Apply", "Remove", "HasSchema", "ListApplied",
		"Get", "Set", "HasAuthoredValue", "GetTargets", "SetTargets", "ListProperties",
		"DescribeSchema", "ListSchemas",
		"WriteCatalog", "ValidateCatalog", "ReadCatalog", "ListCatalogVersions",
	}
}

func unaryHandler(name string, call unaryCall) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SchemaRegistryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(SchemaRegistryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterSchemaRegistryServer registers the service implementation on a gRPC server
func RegisterSchemaRegistryServer(s grpc.ServiceRegistrar, srv SchemaRegistryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls SchemaRegistry methods over a client connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a new Client
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes a unary method by name
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
