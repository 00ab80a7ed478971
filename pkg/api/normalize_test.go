package api

import (
	"encoding/json"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalizeTools(t *testing.T) {
	defs := []ToolDefinition{
		{Type: "function", Name: "get_weather", Description: "Weather", Parameters: json.RawMessage(`{"type":"object"}`)},
		{Type: "function", Function: &FunctionDefinition{Name: "lookup", Parameters: json.RawMessage(`{"type":"object","properties":{}}`)}},
		{Type: "function", Description: "nameless"},
		{Type: "function", Name: "   "},
		{Type: "web_search", Name: "builtin"},
		{Type: "function", Name: "loose", Strict: boolPtr(false), Parameters: json.RawMessage(`"not an object"`)},
	}

	got := NormalizeTools(defs)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}

	if got[0].Name != "get_weather" || !got[0].Strict {
		t.Errorf("tool[0] = %+v, want get_weather strict", got[0])
	}
	if got[1].Name != "lookup" || string(got[1].Parameters) != `{"type":"object","properties":{}}` {
		t.Errorf("tool[1] = %+v, want nested function fields", got[1])
	}
	if got[2].Name != "loose" || got[2].Strict {
		t.Errorf("tool[2] = %+v, want loose non-strict", got[2])
	}
	if string(got[2].Parameters) != `{}` {
		t.Errorf("tool[2].Parameters = %s, want {}", got[2].Parameters)
	}
}

func TestNormalizeToolsEmpty(t *testing.T) {
	if got := NormalizeTools(nil); got != nil {
		t.Errorf("NormalizeTools(nil) = %v, want nil", got)
	}
}

func TestNormalizeToolChoice(t *testing.T) {
	tests := []struct {
		name   string
		json   string
		want   NormalizedToolChoice
		wantOK bool
	}{
		{"auto", `"auto"`, NormalizedToolChoice{Mode: "auto"}, true},
		{"none", `"none"`, NormalizedToolChoice{Mode: "none"}, true},
		{"required", `"required"`, NormalizedToolChoice{Mode: "required"}, true},
		{"unknown string", `"sometimes"`, NormalizedToolChoice{}, false},
		{"responses form", `{"type":"function","name":"f"}`, NormalizedToolChoice{Mode: "function", Name: "f"}, true},
		{"chat form", `{"type":"function","function":{"name":"g"}}`, NormalizedToolChoice{Mode: "function", Name: "g"}, true},
		{"no name", `{"type":"function"}`, NormalizedToolChoice{}, false},
		{"other type", `{"type":"file_search"}`, NormalizedToolChoice{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tc ToolChoice
			if err := json.Unmarshal([]byte(tt.json), &tc); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got, ok := NormalizeToolChoice(&tc)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeToolChoice(%s) = %+v, %v; want %+v, %v", tt.json, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestToolChoiceForms(t *testing.T) {
	c := NormalizedToolChoice{Mode: "function", Name: "f"}

	data, _ := json.Marshal(c.ResponsesForm())
	if string(data) != `{"name":"f","type":"function"}` {
		t.Errorf("ResponsesForm = %s", data)
	}
	data, _ = json.Marshal(c.ChatForm())
	if string(data) != `{"function":{"name":"f"},"type":"function"}` {
		t.Errorf("ChatForm = %s", data)
	}
	data, _ = json.Marshal(NormalizedToolChoice{Mode: "auto"}.ChatForm())
	if string(data) != `"auto"` {
		t.Errorf("ChatForm(auto) = %s", data)
	}
}
