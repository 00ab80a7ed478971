package api

import (
	"encoding/json"
	"strings"
)

// Tool is a function tool in backend-agnostic form. Name is never empty
// and Parameters is always a JSON object.
type Tool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Strict      bool            `json:"strict"`
}

var emptySchema = json.RawMessage(`{}`)

// NormalizeTools converts declared tools into Tools. Entries that are not
// function tools or that carry no name are dropped. Fields of a nested
// function object win over the flat ones; strict defaults to true.
func NormalizeTools(defs []ToolDefinition) []Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]Tool, 0, len(defs))
	for _, d := range defs {
		if d.Type != "" && d.Type != "function" {
			continue
		}
		var fn FunctionDefinition
		if d.Function != nil {
			fn = *d.Function
		}

		name := firstNonBlank(fn.Name, d.Name)
		if name == "" {
			continue
		}

		strict := true
		switch {
		case d.Strict != nil:
			strict = *d.Strict
		case fn.Strict != nil:
			strict = *fn.Strict
		}

		out = append(out, Tool{
			Type:        "function",
			Name:        name,
			Description: firstNonBlank(fn.Description, d.Description),
			Parameters:  objectOrEmpty(fn.Parameters, d.Parameters),
			Strict:      strict,
		})
	}
	return out
}

// NormalizedToolChoice is a tool choice in backend-agnostic form: Mode is
// auto, none or required, or Mode is "function" and Name is set.
type NormalizedToolChoice struct {
	Mode string
	Name string
}

// NormalizeToolChoice resolves the declared tool choice. The second return
// value is false when no usable choice was declared.
func NormalizeToolChoice(tc *ToolChoice) (NormalizedToolChoice, bool) {
	if tc == nil {
		return NormalizedToolChoice{}, false
	}
	switch tc.String {
	case "auto", "none", "required":
		return NormalizedToolChoice{Mode: tc.String}, true
	case "":
	default:
		return NormalizedToolChoice{}, false
	}

	f := tc.Function
	if f == nil || f.Type != "function" {
		return NormalizedToolChoice{}, false
	}
	var nested string
	if f.Function != nil {
		nested = f.Function.Name
	}
	name := firstNonBlank(nested, f.Name)
	if name == "" {
		return NormalizedToolChoice{}, false
	}
	return NormalizedToolChoice{Mode: "function", Name: name}, true
}

// ResponsesForm renders the choice in the Responses wire form.
func (c NormalizedToolChoice) ResponsesForm() any {
	if c.Mode == "function" {
		return map[string]string{"type": "function", "name": c.Name}
	}
	return c.Mode
}

// ChatForm renders the choice in the Chat Completions wire form.
func (c NormalizedToolChoice) ChatForm() any {
	if c.Mode == "function" {
		return map[string]any{"type": "function", "function": map[string]string{"name": c.Name}}
	}
	return c.Mode
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func objectOrEmpty(candidates ...json.RawMessage) json.RawMessage {
	for _, raw := range candidates {
		trimmed := strings.TrimSpace(string(raw))
		if strings.HasPrefix(trimmed, "{") {
			return raw
		}
	}
	return emptySchema
}
