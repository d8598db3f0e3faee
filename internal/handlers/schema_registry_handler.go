package handlers

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/asakaida/schemareg/internal/services"
)

// SchemaRegistryHandler handles SchemaRegistry gRPC requests
type SchemaRegistryHandler struct {
	schemaService services.SchemaServiceInterface
}

// NewSchemaRegistryHandler creates a new SchemaRegistryHandler
func NewSchemaRegistryHandler(schemaService services.SchemaServiceInterface) *SchemaRegistryHandler {
	return &SchemaRegistryHandler{schemaService: schemaService}
}

func okResponse() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}

func boolResponse(field string, v bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{field: structpb.NewBoolValue(v)}}
}

// DefinePrim handles the DefinePrim RPC
func (h *SchemaRegistryHandler) DefinePrim(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, err := requiredString(req, "path")
	if err != nil {
		return nil, err
	}
	typeName, err := requiredString(req, "type")
	if err != nil {
		return nil, err
	}

	prim, err := h.schemaService.DefinePrim(ctx, path, typeName)
	if err != nil {
		return nil, toStatus(err, codes.InvalidArgument)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"path": structpb.NewStringValue(prim.Path()),
		"type": structpb.NewStringValue(prim.TypeName()),
	}}, nil
}

// CanApply handles the CanApply RPC
func (h *SchemaRegistryHandler) CanApply(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requiredString(req, "schema")
	if err != nil {
		return nil, err
	}
	baseType, err := requiredString(req, "type")
	if err != nil {
		return nil, err
	}

	ok, err := h.schemaService.CanApply(ctx, name, baseType)
	if err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return boolResponse("applicable", ok), nil
}

// Apply handles the Apply RPC
func (h *SchemaRegistryHandler) Apply(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, name, instance, err := schemaTarget(req)
	if err != nil {
		return nil, err
	}
	if err := h.schemaService.Apply(ctx, path, name, instance); err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return okResponse(), nil
}

// Remove handles the Remove RPC
func (h *SchemaRegistryHandler) Remove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, name, instance, err := schemaTarget(req)
	if err != nil {
		return nil, err
	}
	if err := h.schemaService.Remove(ctx, path, name, instance); err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return okResponse(), nil
}

func schemaTarget(req *structpb.Struct) (path, name, instance string, err error) {
	if path, err = requiredString(req, "path"); err != nil {
		return "", "", "", err
	}
	if name, err = requiredString(req, "schema"); err != nil {
		return "", "", "", err
	}
	if instance, err = optionalString(req, "instance"); err != nil {
		return "", "", "", err
	}
	return path, name, instance, nil
}

// HasSchema handles the HasSchema RPC
func (h *SchemaRegistryHandler) HasSchema(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, err := requiredString(req, "path")
	if err != nil {
		return nil, err
	}
	schemaID, err := requiredString(req, "schema_id")
	if err != nil {
		return nil, err
	}

	ok, err := h.schemaService.HasSchema(ctx, path, schemaID)
	if err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return boolResponse("applied", ok), nil
}

// ListApplied handles the ListApplied RPC
func (h *SchemaRegistryHandler) ListApplied(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, err := requiredString(req, "path")
	if err != nil {
		return nil, err
	}

	ids, err := h.schemaService.ListApplied(ctx, path)
	if err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"schemas": stringsToList(ids),
	}}, nil
}

// valueTarget reads the path, applied schema id and key of a value request
func valueTarget(req *structpb.Struct) (path, schemaID, key string, err error) {
	if path, err = requiredString(req, "path"); err != nil {
		return "", "", "", err
	}
	if schemaID, err = requiredString(req, "schema_id"); err != nil {
		return "", "", "", err
	}
	if key, err = requiredString(req, "key"); err != nil {
		return "", "", "", err
	}
	return path, schemaID, key, nil
}

// Get handles the Get RPC
func (h *SchemaRegistryHandler) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, schemaID, key, err := valueTarget(req)
	if err != nil {
		return nil, err
	}

	value, err := h.schemaService.Get(ctx, path, schemaID, key)
	if err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return attributeValueToStruct(value)
}

// Set handles the Set RPC
func (h *SchemaRegistryHandler) Set(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, schemaID, key, err := valueTarget(req)
	if err != nil {
		return nil, err
	}
	raw, ok := req.GetFields()["value"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "value is required")
	}
	value, err := protoValueToInterface(raw)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid value: %v", err)
	}

	if err := h.schemaService.Set(ctx, path, schemaID, key, value); err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return okResponse(), nil
}

// HasAuthoredValue handles the HasAuthoredValue RPC
func (h *SchemaRegistryHandler) HasAuthoredValue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, err := requiredString(req, "path")
	if err != nil {
		return nil, err
	}
	key, err := requiredString(req, "key")
	if err != nil {
		return nil, err
	}

	ok, err := h.schemaService.HasAuthoredValue(ctx, path, key)
	if err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return boolResponse("authored", ok), nil
}

// GetTargets handles the GetTargets RPC
func (h *SchemaRegistryHandler) GetTargets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, schemaID, key, err := valueTarget(req)
	if err != nil {
		return nil, err
	}

	targets, err := h.schemaService.GetTargets(ctx, path, schemaID, key)
	if err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"targets": stringsToList(targets),
	}}, nil
}

// SetTargets handles the SetTargets RPC
func (h *SchemaRegistryHandler) SetTargets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, schemaID, key, err := valueTarget(req)
	if err != nil {
		return nil, err
	}
	targets, err := stringList(req, "targets")
	if err != nil {
		return nil, err
	}

	if err := h.schemaService.SetTargets(ctx, path, schemaID, key, targets); err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return okResponse(), nil
}

// ListProperties handles the ListProperties RPC
func (h *SchemaRegistryHandler) ListProperties(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, err := requiredString(req, "path")
	if err != nil {
		return nil, err
	}

	values, err := h.schemaService.Properties(ctx, path)
	if err != nil {
		return nil, toStatus(err, codes.Internal)
	}

	list := make([]*structpb.Value, 0, len(values))
	for _, v := range values {
		s, err := attributeValueToStruct(v)
		if err != nil {
			return nil, err
		}
		list = append(list, structpb.NewStructValue(s))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"properties": structpb.NewListValue(&structpb.ListValue{Values: list}),
	}}, nil
}

// DescribeSchema handles the DescribeSchema RPC
func (h *SchemaRegistryHandler) DescribeSchema(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requiredString(req, "schema")
	if err != nil {
		return nil, err
	}

	def, err := h.schemaService.DescribeSchema(ctx, name)
	if err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return schemaToStruct(def)
}

// ListSchemas handles the ListSchemas RPC
func (h *SchemaRegistryHandler) ListSchemas(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	defs := h.schemaService.ListSchemas(ctx)

	list := make([]*structpb.Value, 0, len(defs))
	for _, def := range defs {
		s, err := schemaToStruct(def)
		if err != nil {
			return nil, err
		}
		list = append(list, structpb.NewStructValue(s))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"schemas": structpb.NewListValue(&structpb.ListValue{Values: list}),
	}}, nil
}

// WriteCatalog handles the WriteCatalog RPC
func (h *SchemaRegistryHandler) WriteCatalog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	dsl, err := requiredString(req, "dsl")
	if err != nil {
		return nil, err
	}

	version, err := h.schemaService.WriteCatalog(ctx, name, dsl)
	if err != nil {
		return nil, toStatus(err, codes.InvalidArgument)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":    structpb.NewStringValue(name),
		"version": structpb.NewStringValue(version),
	}}, nil
}

// ValidateCatalog handles the ValidateCatalog RPC.
// Invalid documents are reported in the response, not as an RPC error.
func (h *SchemaRegistryHandler) ValidateCatalog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	dsl, err := requiredString(req, "dsl")
	if err != nil {
		return nil, err
	}

	if err := h.schemaService.ValidateCatalog(ctx, dsl); err != nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{
			"valid": structpb.NewBoolValue(false),
			"error": structpb.NewStringValue(err.Error()),
		}}, nil
	}
	return boolResponse("valid", true), nil
}

// ReadCatalog handles the ReadCatalog RPC
func (h *SchemaRegistryHandler) ReadCatalog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	version, err := optionalString(req, "version")
	if err != nil {
		return nil, err
	}

	c, err := h.schemaService.ReadCatalog(ctx, name, version)
	if err != nil {
		return nil, toStatus(err, codes.Internal)
	}

	names := make([]string, 0, len(c.Schemas))
	for _, s := range c.Schemas {
		names = append(names, s.Name)
	}

	createdAt := ""
	if !c.CreatedAt.IsZero() {
		createdAt = c.CreatedAt.Format(time.RFC3339)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":       structpb.NewStringValue(c.Name),
		"version":    structpb.NewStringValue(c.Version),
		"dsl":        structpb.NewStringValue(c.DSL),
		"schemas":    stringsToList(names),
		"created_at": structpb.NewStringValue(createdAt),
	}}, nil
}

// ListCatalogVersions handles the ListCatalogVersions RPC
func (h *SchemaRegistryHandler) ListCatalogVersions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	limit, err := optionalInt(req, "limit")
	if err != nil {
		return nil, err
	}

	versions, err := h.schemaService.ListCatalogVersions(ctx, name, limit)
	if err != nil {
		return nil, toStatus(err, codes.Internal)
	}

	list := make([]*structpb.Value, 0, len(versions))
	for _, v := range versions {
		list = append(list, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"version":    structpb.NewStringValue(v.Version),
			"created_at": structpb.NewStringValue(v.CreatedAt.Format(time.RFC3339)),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"versions": structpb.NewListValue(&structpb.ListValue{Values: list}),
	}}, nil
}
