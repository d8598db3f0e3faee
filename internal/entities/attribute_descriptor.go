package entities

import (
	"fmt"
	"math"
	"strings"
)

// KeySeparator joins namespace segments of a property key (e.g. "newton:timeStep")
const KeySeparator = ":"

// AttributeDescriptor defines one typed value slot contributed by a schema
// Example: "attribute double newton:timeStep = 0.005"
type AttributeDescriptor struct {
	Namespace     string      // Scope of the attribute (e.g., "newton", "newton:kamino:padmm")
	Name          string      // Attribute name within the namespace (e.g., "timeStep")
	Type          ValueType   // Declared value type
	Fallback      interface{} // Value returned while nothing is authored
	AllowedTokens []string    // Closed token set, token type only
	Min           *float64    // Inclusive lower bound, numeric types only
	Max           *float64    // Inclusive upper bound, numeric types only
	Doc           string
}

// Key returns the composed namespaced key of the attribute
func (d *AttributeDescriptor) Key() string {
	return ComposeKey(d.Namespace, d.Name)
}

// FallbackValue returns the declared fallback, or the zero value of the type
func (d *AttributeDescriptor) FallbackValue() interface{} {
	if d.Fallback == nil {
		return d.Type.ZeroValue()
	}
	return d.Fallback
}

// AllowsToken reports whether a token is legal for this slot
func (d *AttributeDescriptor) AllowsToken(token string) bool {
	if len(d.AllowedTokens) == 0 {
		return true
	}
	for _, t := range d.AllowedTokens {
		if t == token {
			return true
		}
	}
	return false
}

// CheckDomain validates an already-coerced value against the token set and range.
// It returns a *DomainError on violation.
func (d *AttributeDescriptor) CheckDomain(value interface{}) error {
	switch d.Type {
	case ValueTypeToken:
		token, _ := value.(string)
		if !d.AllowsToken(token) {
			return &DomainError{
				Key:    d.Key(),
				Value:  value,
				Reason: fmt.Sprintf("is not one of [%s]", strings.Join(d.AllowedTokens, ", ")),
			}
		}
	case ValueTypeInt, ValueTypeDouble:
		var f float64
		switch v := value.(type) {
		case int64:
			f = float64(v)
		case float64:
			f = v
		default:
			return nil
		}
		if math.IsNaN(f) {
			return &DomainError{Key: d.Key(), Value: value, Reason: "is not a number"}
		}
		if d.Min != nil && f < *d.Min {
			return &DomainError{Key: d.Key(), Value: value, Reason: fmt.Sprintf("is below minimum %v", *d.Min)}
		}
		if d.Max != nil && f > *d.Max {
			return &DomainError{Key: d.Key(), Value: value, Reason: fmt.Sprintf("is above maximum %v", *d.Max)}
		}
	}
	return nil
}

// Validate checks the descriptor itself, including that its fallback is legal
func (d *AttributeDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("attribute name is required")
	}
	if d.Type == ValueTypeUnknown || d.Type == ValueTypeRelationship {
		return fmt.Errorf("attribute %s: invalid value type %s", d.Key(), d.Type)
	}
	if len(d.AllowedTokens) > 0 && d.Type != ValueTypeToken {
		return fmt.Errorf("attribute %s: allowed tokens are only valid for token attributes", d.Key())
	}
	if (d.Min != nil || d.Max != nil) && !d.Type.IsNumeric() {
		return fmt.Errorf("attribute %s: range is only valid for numeric attributes", d.Key())
	}
	if d.Min != nil && d.Max != nil && *d.Min > *d.Max {
		return fmt.Errorf("attribute %s: empty range [%v, %v]", d.Key(), *d.Min, *d.Max)
	}

	fallback := d.FallbackValue()
	if !fallbackMatchesType(d.Type, fallback) {
		return fmt.Errorf("attribute %s: fallback %v (%T) is not a %s", d.Key(), fallback, fallback, d.Type)
	}
	if err := d.CheckDomain(fallback); err != nil {
		return fmt.Errorf("attribute %s: invalid fallback: %w", d.Key(), err)
	}
	return nil
}

// String returns the DSL form of the descriptor
func (d *AttributeDescriptor) String() string {
	return fmt.Sprintf("attribute %s %s = %v", d.Type, d.Key(), d.FallbackValue())
}

// fallbackMatchesType checks the canonical Go representation of a fallback
func fallbackMatchesType(t ValueType, v interface{}) bool {
	switch t {
	case ValueTypeBool:
		_, ok := v.(bool)
		return ok
	case ValueTypeInt:
		_, ok := v.(int64)
		return ok
	case ValueTypeDouble:
		_, ok := v.(float64)
		return ok
	case ValueTypeToken:
		_, ok := v.(string)
		return ok
	}
	return false
}

// ComposeKey joins a namespace and a name into a property key
func ComposeKey(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + KeySeparator + name
}

// SplitKey splits a property key at its last separator into namespace and name
func SplitKey(key string) (namespace, name string) {
	i := strings.LastIndex(key, KeySeparator)
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}
