package entities

import (
	"encoding/json"
	"fmt"
)

// AttributeValue is a resolved attribute on a prim
// Example: /Scene.newton:timeStep = 0.005 (fallback)
type AttributeValue struct {
	PrimPath string      // Prim path (e.g., "/Scene")
	Schema   string      // Applied schema id that contributes the key
	Key      string      // Property key on the prim
	Type     ValueType   // Declared type
	Value    interface{} // Authored value, or the fallback
	Authored bool        // Whether Value was explicitly written
}

// String returns a string representation of the value
// Format: path.key = value
func (a *AttributeValue) String() string {
	suffix := ""
	if !a.Authored {
		suffix = " (fallback)"
	}
	return fmt.Sprintf("%s.%s = %v%s", a.PrimPath, a.Key, a.Value, suffix)
}

// Validate checks if the value is addressable
func (a *AttributeValue) Validate() error {
	if a.PrimPath == "" {
		return fmt.Errorf("prim path is required")
	}
	if a.Key == "" {
		return fmt.Errorf("attribute key is required")
	}
	if a.Value == nil {
		return fmt.Errorf("attribute value is required")
	}
	return nil
}

// MarshalValue serializes the value to a JSON string
func (a *AttributeValue) MarshalValue() (string, error) {
	data, err := json.Marshal(a.Value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attribute value: %w", err)
	}
	return string(data), nil
}
