package relay

import (
	"encoding/json"
	"testing"
)

type stringerValue struct{}

func (stringerValue) String() string { return "custom" }

func TestStringifyData(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"string", "hello", "hello"},
		{"nil", nil, ""},
		{"bool", false, "false"},
		{"integer float", float64(42), "42"},
		{"fraction", 1.5, "1.5"},
		{"large float", 1e21, "1000000000000000000000"},
		{"int", 7, "7"},
		{"int64", int64(-3), "-3"},
		{"json number", json.Number("12.50"), "12.50"},
		{"stringer", stringerValue{}, "custom"},
		{"slice", []interface{}{"a", float64(1)}, `["a",1]`},
		{"map", map[string]interface{}{"k": "v"}, `{"k":"v"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StringifyData(map[string]interface{}{"key": tt.in})
			if got["key"] != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got["key"])
			}
		})
	}
}

func TestStringifyDataNil(t *testing.T) {
	got := StringifyData(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil map, got %#v", got)
	}
}

func TestBuildEnvelope(t *testing.T) {
	env := BuildEnvelope(SendRequest{
		TargetToken: "tok",
		Title:       "T",
		Body:        "B",
		Data:        map[string]interface{}{"id": float64(9)},
	})

	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"message":{"token":"tok","notification":{"title":"T","body":"B"},"data":{"id":"9"}}}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}
