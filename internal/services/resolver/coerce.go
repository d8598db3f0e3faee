package resolver

import (
	"fmt"
	"math"

	"github.com/asakaida/schemareg/internal/entities"
)

// Coerce converts value to the canonical Go representation of the descriptor type:
// bool, int64, float64 or string.
//
// Integer slots take any integer or float kind; fractional input truncates toward zero.
// Double slots take any integer or float kind. Bool and token slots take only bool and string.
func Coerce(desc *entities.AttributeDescriptor, value interface{}) (interface{}, error) {
	mismatch := &entities.TypeMismatchError{Key: desc.Key(), Expected: desc.Type, Got: fmt.Sprintf("%T", value)}

	switch desc.Type {
	case entities.ValueTypeBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
		return nil, mismatch

	case entities.ValueTypeToken:
		if v, ok := value.(string); ok {
			return v, nil
		}
		return nil, mismatch

	case entities.ValueTypeInt:
		if i, ok := asInt64(value); ok {
			return i, nil
		}
		f, ok := asFloat64(value)
		if !ok {
			if isUnsigned(value) {
				return nil, &entities.DomainError{Key: desc.Key(), Value: value, Reason: "overflows int"}
			}
			return nil, mismatch
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &entities.DomainError{Key: desc.Key(), Value: value, Reason: "is not a finite number"}
		}
		t := math.Trunc(f)
		if t < math.MinInt64 || t >= math.MaxInt64 {
			return nil, &entities.DomainError{Key: desc.Key(), Value: value, Reason: "overflows int"}
		}
		return int64(t), nil

	case entities.ValueTypeDouble:
		if f, ok := asFloat64(value); ok {
			return f, nil
		}
		if i, ok := asInt64(value); ok {
			return float64(i), nil
		}
		switch u := value.(type) {
		case uint:
			return float64(u), nil
		case uint64:
			return float64(u), nil
		}
		return nil, mismatch
	}

	return nil, mismatch
}

// asInt64 accepts every integer kind that fits in int64
func asInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

func isUnsigned(value interface{}) bool {
	switch value.(type) {
	case uint, uint64:
		return true
	}
	return false
}

func asFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
