package openaicompat

import (
	"encoding/json"
	"testing"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/provider"
)

func TestTranslateMessages_ToolRoundTrip(t *testing.T) {
	req := &api.CreateResponseRequest{
		Instructions: "You are terse.",
		Input: []api.Item{
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleDeveloper, Content: []api.ContentPart{{Type: "input_text", Text: "Use metric units."}}}},
			api.NewUserMessage("weather in London and Paris?"),
			{Type: api.ItemTypeFunctionCall, FunctionCall: &api.FunctionCallData{Name: "get_weather", CallID: "call_1", Arguments: `{"city":"London"}`}},
			{Type: api.ItemTypeFunctionCall, FunctionCall: &api.FunctionCallData{Name: "get_weather", CallID: "call_2", Arguments: `{"city":"Paris"}`}},
			{Type: api.ItemTypeFunctionCall, FunctionCall: &api.FunctionCallData{Name: " ", CallID: "call_3"}},
			{Type: api.ItemTypeFunctionCallOutput, FunctionCallOutput: &api.FunctionCallOutputData{CallID: "call_1", Output: "12C"}},
			{Type: api.ItemTypeFunctionCallOutput, FunctionCallOutput: &api.FunctionCallOutputData{Output: "orphan"}},
			{Type: api.ItemTypeReasoning, Reasoning: api.NewReasoningData("hidden")},
		},
	}

	msgs := translateMessages(KindOpenAIChat, req)

	wantRoles := []string{"system", "system", "user", "assistant", "tool"}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("messages = %+v, want %d", msgs, len(wantRoles))
	}
	for i, role := range wantRoles {
		if msgs[i].Role != role {
			t.Errorf("messages[%d].role = %q, want %q", i, msgs[i].Role, role)
		}
	}
	if msgs[0].Content != "You are terse." {
		t.Errorf("messages[0] = %v, want instructions first", msgs[0].Content)
	}
	if n := len(msgs[3].ToolCalls); n != 2 {
		t.Errorf("assistant tool_calls = %d, want 2", n)
	}
	if msgs[4].ToolCallID != "call_1" || msgs[4].Content != "12C" {
		t.Errorf("tool message = %+v", msgs[4])
	}
}

func TestTranslateMessages_ZhipuKeepsExistingSystem(t *testing.T) {
	req := &api.CreateResponseRequest{
		Instructions: "ignored",
		Input: []api.Item{
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleSystem, Content: []api.ContentPart{{Type: "input_text", Text: "existing"}}}},
			api.NewUserMessage("hi"),
		},
	}
	msgs := translateMessages(KindZhipu, req)
	if len(msgs) != 2 || msgs[0].Content != "existing" {
		t.Errorf("messages = %+v, want the existing system message only", msgs)
	}
}

func TestTranslateMessages_ImageContent(t *testing.T) {
	req := &api.CreateResponseRequest{Input: []api.Item{{
		Type: api.ItemTypeMessage,
		Message: &api.MessageData{Role: api.RoleUser, Content: []api.ContentPart{
			{Type: "input_text", Text: "what is this?"},
			{Type: "input_image", ImageURL: "https://example.com/cat.png", Detail: "low"},
		}},
	}}}
	msgs := translateMessages(KindOpenAIChat, req)
	parts, ok := msgs[0].Content.([]ChatContentPart)
	if !ok || len(parts) != 2 {
		t.Fatalf("content = %#v, want two parts", msgs[0].Content)
	}
	if parts[1].Type != "image_url" || parts[1].ImageURL.URL != "https://example.com/cat.png" {
		t.Errorf("parts[1] = %+v, want image_url", parts[1])
	}
}

func TestTranslateRequest_Parameters(t *testing.T) {
	maxTokens := 256
	strict := false
	req := &api.CreateResponseRequest{
		Input:           []api.Item{api.NewUserMessage("hi")},
		MaxOutputTokens: &maxTokens,
		Tools: []api.ToolDefinition{
			{Type: "function", Function: &api.FunctionDefinition{Name: "lookup", Parameters: json.RawMessage(`{"type":"object"}`)}, Strict: &strict},
			{Type: "function"},
		},
		ToolChoice: &api.ToolChoice{Function: &api.ToolChoiceFunction{Type: "function", Name: "lookup"}},
		Text:       &api.TextConfig{Format: &api.TextFormat{Type: "json_object"}},
	}
	call := &provider.Call{Request: req, Hint: provider.Hint{ReasoningEffort: "xhigh"}}

	cr := TranslateRequest(KindOpenAIChat, "m", call, true)

	if cr.MaxTokens == nil || *cr.MaxTokens != 256 {
		t.Errorf("max_tokens = %v, want 256", cr.MaxTokens)
	}
	if len(cr.Tools) != 1 {
		t.Fatalf("tools = %d, want 1 (nameless tool dropped)", len(cr.Tools))
	}
	if cr.Tools[0].Function.Strict {
		t.Error("strict = true, want false")
	}
	choice, _ := json.Marshal(cr.ToolChoice)
	if string(choice) != `{"function":{"name":"lookup"},"type":"function"}` {
		t.Errorf("tool_choice = %s", choice)
	}
	if cr.ReasoningEffort != "high" {
		t.Errorf("reasoning_effort = %q, want high", cr.ReasoningEffort)
	}
	if cr.StreamOptions == nil || !cr.StreamOptions.IncludeUsage {
		t.Error("expected stream_options.include_usage")
	}
	format, _ := json.Marshal(cr.ResponseFormat)
	if string(format) != `{"type":"json_object"}` {
		t.Errorf("response_format = %s", format)
	}
}

func TestReasoningReminder(t *testing.T) {
	if got := reasoningReminder("low"); got != "" {
		t.Errorf("low reminder = %q, want empty", got)
	}
	high := reasoningReminder("high")
	xhigh := reasoningReminder("xhigh")
	if high == "" || xhigh == "" {
		t.Fatal("expected reminders for high and xhigh")
	}
	if len(xhigh) <= len(high) {
		t.Error("xhigh reminder should extend the high reminder")
	}
}
