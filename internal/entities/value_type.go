package entities

import "fmt"

// ValueType is the declared type of an attribute slot
type ValueType int

const (
	ValueTypeUnknown ValueType = iota
	ValueTypeBool
	ValueTypeInt
	ValueTypeDouble
	ValueTypeToken
	ValueTypeRelationship
)

var valueTypeNames = map[ValueType]string{
	ValueTypeBool:         "bool",
	ValueTypeInt:          "int",
	ValueTypeDouble:       "double",
	ValueTypeToken:        "token",
	ValueTypeRelationship: "rel",
}

// String returns the DSL spelling of the type
func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// IsNumeric reports whether range constraints apply to the type
func (t ValueType) IsNumeric() bool {
	return t == ValueTypeInt || t == ValueTypeDouble
}

// ParseValueType parses a DSL type name ("bool", "int", "double", "token", "rel")
func ParseValueType(name string) (ValueType, error) {
	for t, n := range valueTypeNames {
		if n == name {
			return t, nil
		}
	}
	return ValueTypeUnknown, fmt.Errorf("unknown value type: %s", name)
}

// ZeroValue returns the implicit fallback for a type without a declared one
func (t ValueType) ZeroValue() interface{} {
	switch t {
	case ValueTypeBool:
		return false
	case ValueTypeInt:
		return int64(0)
	case ValueTypeDouble:
		return float64(0)
	case ValueTypeToken:
		return ""
	default:
		return nil
	}
}
