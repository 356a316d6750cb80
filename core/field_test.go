package core

import (
	"testing"
	"time"
)

func TestField_StringValue(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{
			name:  "String field",
			field: Field{Type: StringType, Str: "hello"},
			want:  "hello",
		},
		{
			name:  "Int field",
			field: Field{Type: IntType, Int64: 42},
			want:  "42",
		},
		{
			name:  "Int64 field",
			field: Field{Type: Int64Type, Int64: 1234567890},
			want:  "1234567890",
		},
		{
			name:  "Bool field (true)",
			field: Field{Type: BoolType, Int64: 1},
			want:  "true",
		},
		{
			name:  "Bool field (false)",
			field: Field{Type: BoolType, Int64: 0},
			want:  "false",
		},
		{
			name:  "Float64 field",
			field: Field{Type: Float64Type, Float64: 3.5},
			want:  "3.5",
		},
		{
			name:  "Duration field",
			field: Field{Type: DurationType, Int64: int64(time.Second)},
			want:  "1s",
		},
		{
			name:  "Time field",
			field: Field{Type: TimeType, Int64: now.UnixNano()},
			want:  now.Format(time.RFC3339),
		},
		{
			name:  "Error field",
			field: Field{Type: ErrorType, Str: "boom"},
			want:  "boom",
		},
		{
			name:  "Any field",
			field: Field{Type: AnyType, Any: []int{1, 2}},
			want:  "[1 2]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.field.StringValue(); got != tt.want {
				t.Errorf("StringValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestField_Value(t *testing.T) {
	if v := (Field{Type: IntType, Int64: 7}).Value(); v != 7 {
		t.Errorf("Value() = %v, want 7", v)
	}
	if v := (Field{Type: BoolType, Int64: 1}).Value(); v != true {
		t.Errorf("Value() = %v, want true", v)
	}
	if v := (Field{Type: StringType, Str: "x"}).Value(); v != "x" {
		t.Errorf("Value() = %v, want x", v)
	}
	if v := (Field{Type: DurationType, Int64: int64(time.Minute)}).Value(); v != time.Minute {
		t.Errorf("Value() = %v, want 1m", v)
	}
	payload := map[string]any{"k": "v"}
	if v := (Field{Type: AnyType, Any: payload}).Value(); v == nil {
		t.Error("Value() for AnyType returned nil")
	}
}
