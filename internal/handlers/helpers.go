package handlers

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/asakaida/schemareg/internal/entities"
	"github.com/asakaida/schemareg/internal/repositories"
	"github.com/asakaida/schemareg/internal/services"
)

func requiredString(req *structpb.Struct, field string) (string, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", field)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || s.StringValue == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a non-empty string", field)
	}
	return s.StringValue, nil
}

func optionalString(req *structpb.Struct, field string) (string, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return "", nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return "", nil
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	default:
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", field)
	}
}

func optionalInt(req *structpb.Struct, field string) (int, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue < 0 || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a non-negative integer", field)
	}
	return int(n.NumberValue), nil
}

func stringList(req *structpb.Struct, field string) ([]string, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return nil, nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be a list of strings", field)
	}
	out := make([]string, 0, len(list.ListValue.GetValues()))
	for i, item := range list.ListValue.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "%s[%d] must be a string", field, i)
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

// protoValueToInterface converts a scalar request value.
// Numbers arrive as float64; the resolver narrows them to the declared type.
func protoValueToInterface(v *structpb.Value) (interface{}, error) {
	if v == nil {
		return nil, fmt.Errorf("value cannot be nil")
	}

	switch v.Kind.(type) {
	case *structpb.Value_NumberValue:
		return v.GetNumberValue(), nil
	case *structpb.Value_StringValue:
		return v.GetStringValue(), nil
	case *structpb.Value_BoolValue:
		return v.GetBoolValue(), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v.Kind)
	}
}

func interfaceToProtoValue(v interface{}) (*structpb.Value, error) {
	switch val := v.(type) {
	case bool:
		return structpb.NewBoolValue(val), nil
	case int64:
		return structpb.NewNumberValue(float64(val)), nil
	case float64:
		return structpb.NewNumberValue(val), nil
	case string:
		return structpb.NewStringValue(val), nil
	case []string:
		values := make([]*structpb.Value, len(val))
		for i, s := range val {
			values[i] = structpb.NewStringValue(s)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

func stringsToList(items []string) *structpb.Value {
	v, _ := interfaceToProtoValue(items)
	return v
}

func attributeValueToStruct(a *entities.AttributeValue) (*structpb.Struct, error) {
	value, err := interfaceToProtoValue(a.Value)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode %s: %v", a.Key, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"path":     structpb.NewStringValue(a.PrimPath),
		"schema":   structpb.NewStringValue(a.Schema),
		"key":      structpb.NewStringValue(a.Key),
		"type":     structpb.NewStringValue(a.Type.String()),
		"value":    value,
		"authored": structpb.NewBoolValue(a.Authored),
	}}, nil
}

func schemaToStruct(s *entities.SchemaDefinition) (*structpb.Struct, error) {
	attributes := make([]*structpb.Value, 0, len(s.Attributes))
	for _, a := range s.Attributes {
		fields := map[string]*structpb.Value{
			"key":  structpb.NewStringValue(a.Key()),
			"type": structpb.NewStringValue(a.Type.String()),
		}
		if fallback := a.FallbackValue(); fallback != nil {
			v, err := interfaceToProtoValue(fallback)
			if err != nil {
				return nil, status.Errorf(codes.Internal, "failed to encode fallback of %s: %v", a.Key(), err)
			}
			fields["fallback"] = v
		}
		if len(a.AllowedTokens) > 0 {
			fields["allowed"] = stringsToList(a.AllowedTokens)
		}
		if a.Min != nil {
			fields["min"] = structpb.NewNumberValue(*a.Min)
		}
		if a.Max != nil {
			fields["max"] = structpb.NewNumberValue(*a.Max)
		}
		if a.Doc != "" {
			fields["doc"] = structpb.NewStringValue(a.Doc)
		}
		attributes = append(attributes, structpb.NewStructValue(&structpb.Struct{Fields: fields}))
	}

	relationships := make([]*structpb.Value, 0, len(s.Relationships))
	for _, r := range s.Relationships {
		relationships = append(relationships, structpb.NewStringValue(r.Key()))
	}

	applicability := ""
	if s.Applicability != nil {
		applicability = s.Applicability.String()
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":            structpb.NewStringValue(s.Name),
		"alias":           structpb.NewStringValue(s.Alias),
		"kind":            structpb.NewStringValue(s.Kind.String()),
		"instance_prefix": structpb.NewStringValue(s.InstancePrefix),
		"version":         structpb.NewNumberValue(float64(s.Version)),
		"doc":             structpb.NewStringValue(s.Doc),
		"applies_to":      structpb.NewStringValue(applicability),
		"requires":        stringsToList(s.Prerequisites),
		"attributes":      structpb.NewListValue(&structpb.ListValue{Values: attributes}),
		"relationships":   structpb.NewListValue(&structpb.ListValue{Values: relationships}),
	}}, nil
}

// toStatus maps service errors onto gRPC codes.
// Errors outside the registry taxonomy get the fallback code.
func toStatus(err error, fallback codes.Code) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := fallback
	switch {
	case errors.Is(err, entities.ErrNotFound), errors.Is(err, repositories.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, entities.ErrNotApplicable),
		errors.Is(err, entities.ErrSchemaNotApplied),
		errors.Is(err, entities.ErrDependency),
		errors.Is(err, entities.ErrRegistryFrozen):
		code = codes.FailedPrecondition
	case errors.Is(err, entities.ErrInstanceNameRequired),
		errors.Is(err, entities.ErrTypeMismatch),
		errors.Is(err, entities.ErrDomain),
		errors.Is(err, entities.ErrInvalidDefinition),
		errors.Is(err, entities.ErrCycle),
		errors.Is(err, entities.ErrDescriptorConflict),
		errors.Is(err, entities.ErrInstancePrefixConflict):
		code = codes.InvalidArgument
	case errors.Is(err, entities.ErrDuplicateSchema):
		code = codes.AlreadyExists
	case errors.Is(err, services.ErrStorageNotConfigured):
		code = codes.Unimplemented
	}
	return status.Error(code, err.Error())
}
