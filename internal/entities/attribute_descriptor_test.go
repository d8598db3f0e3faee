package entities

import (
	"errors"
	"math"
	"testing"
)

func float(v float64) *float64 { return &v }

func TestAttributeDescriptor_Key(t *testing.T) {
	d := &AttributeDescriptor{Namespace: "newton:kamino:padmm", Name: "warmstart"}
	if got := d.Key(); got != "newton:kamino:padmm:warmstart" {
		t.Errorf("Key() = %v", got)
	}

	d = &AttributeDescriptor{Name: "group"}
	if got := d.Key(); got != "group" {
		t.Errorf("Key() = %v, want group", got)
	}
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key           string
		wantNamespace string
		wantName      string
	}{
		{"newton:timeStep", "newton", "timeStep"},
		{"newton:kamino:padmm:warmstart", "newton:kamino:padmm", "warmstart"},
		{"group", "", "group"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			ns, name := SplitKey(tt.key)
			if ns != tt.wantNamespace || name != tt.wantName {
				t.Errorf("SplitKey() = (%v, %v), want (%v, %v)", ns, name, tt.wantNamespace, tt.wantName)
			}
			if got := ComposeKey(ns, name); got != tt.key {
				t.Errorf("ComposeKey() = %v, want %v", got, tt.key)
			}
		})
	}
}

func TestAttributeDescriptor_FallbackValue(t *testing.T) {
	tests := []struct {
		name string
		d    AttributeDescriptor
		want interface{}
	}{
		{"declared", AttributeDescriptor{Name: "a", Type: ValueTypeDouble, Fallback: 0.005}, 0.005},
		{"implicit bool", AttributeDescriptor{Name: "a", Type: ValueTypeBool}, false},
		{"implicit int", AttributeDescriptor{Name: "a", Type: ValueTypeInt}, int64(0)},
		{"implicit token", AttributeDescriptor{Name: "a", Type: ValueTypeToken}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.FallbackValue(); got != tt.want {
				t.Errorf("FallbackValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestAttributeDescriptor_CheckDomain(t *testing.T) {
	warmstart := &AttributeDescriptor{
		Namespace:     "newton:kamino:padmm",
		Name:          "warmstart",
		Type:          ValueTypeToken,
		AllowedTokens: []string{"none", "internal", "containers"},
	}
	iterations := &AttributeDescriptor{
		Namespace: "newton",
		Name:      "maxSolverIterations",
		Type:      ValueTypeInt,
		Min:       float(0),
		Max:       float(1000),
	}

	tests := []struct {
		name    string
		d       *AttributeDescriptor
		value   interface{}
		wantErr bool
	}{
		{"allowed token", warmstart, "internal", false},
		{"unknown token", warmstart, "always", true},
		{"in range", iterations, int64(120), false},
		{"lower bound inclusive", iterations, int64(0), false},
		{"upper bound inclusive", iterations, int64(1000), false},
		{"below minimum", iterations, int64(-1), true},
		{"above maximum", iterations, int64(1001), true},
		{"not a number", &AttributeDescriptor{Name: "x", Type: ValueTypeDouble}, math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.CheckDomain(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckDomain() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrDomain) {
				t.Errorf("CheckDomain() error = %v, want ErrDomain", err)
			}
		})
	}
}

func TestAttributeDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		d       AttributeDescriptor
		wantErr bool
	}{
		{
			name: "valid double",
			d:    AttributeDescriptor{Namespace: "newton", Name: "timeStep", Type: ValueTypeDouble, Fallback: 0.005, Min: float(0)},
		},
		{
			name:    "missing name",
			d:       AttributeDescriptor{Type: ValueTypeBool},
			wantErr: true,
		},
		{
			name:    "relationship type",
			d:       AttributeDescriptor{Name: "x", Type: ValueTypeRelationship},
			wantErr: true,
		},
		{
			name:    "tokens on non-token type",
			d:       AttributeDescriptor{Name: "x", Type: ValueTypeInt, AllowedTokens: []string{"a"}},
			wantErr: true,
		},
		{
			name:    "range on bool",
			d:       AttributeDescriptor{Name: "x", Type: ValueTypeBool, Min: float(0)},
			wantErr: true,
		},
		{
			name:    "empty range",
			d:       AttributeDescriptor{Name: "x", Type: ValueTypeInt, Min: float(2), Max: float(1), Fallback: int64(1)},
			wantErr: true,
		},
		{
			name:    "fallback of wrong type",
			d:       AttributeDescriptor{Name: "x", Type: ValueTypeInt, Fallback: 1.5},
			wantErr: true,
		},
		{
			name:    "fallback outside range",
			d:       AttributeDescriptor{Name: "x", Type: ValueTypeInt, Fallback: int64(-1), Min: float(0)},
			wantErr: true,
		},
		{
			name:    "implicit token fallback not allowed",
			d:       AttributeDescriptor{Name: "x", Type: ValueTypeToken, AllowedTokens: []string{"a", "b"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.d.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseValueType(t *testing.T) {
	for _, name := range []string{"bool", "int", "double", "token", "rel"} {
		vt, err := ParseValueType(name)
		if err != nil {
			t.Fatalf("ParseValueType(%q) error = %v", name, err)
		}
		if vt.String() != name {
			t.Errorf("ParseValueType(%q).String() = %v", name, vt)
		}
	}

	if _, err := ParseValueType("float3"); err == nil {
		t.Error("ParseValueType(float3) expected error")
	}
}
