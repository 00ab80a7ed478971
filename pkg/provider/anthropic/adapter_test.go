package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/provider"
)

func TestAdapter_Chat_NonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-ant-test" {
			t.Errorf("x-api-key = %q, want sk-ant-test", got)
		}
		if got := r.Header.Get("anthropic-version"); got != APIVersion {
			t.Errorf("anthropic-version = %q, want %q", got, APIVersion)
		}

		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.System != "Be brief." {
			t.Errorf("system = %q, want %q", req.System, "Be brief.")
		}
		if req.MaxTokens != DefaultMaxTokens {
			t.Errorf("max_tokens = %d, want %d", req.MaxTokens, DefaultMaxTokens)
		}

		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5",
			"content":[{"type":"text","text":"Hello"},{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"London"}}],
			"stop_reason":"tool_use","usage":{"input_tokens":12,"output_tokens":7}}`)
	}))
	defer srv.Close()

	a, err := New(provider.Config{Model: "claude-sonnet-4-5", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := &api.CreateResponseRequest{Instructions: "Be brief.", Input: []api.Item{api.NewUserMessage("hi")}}
	out, err := a.Chat(context.Background(), &provider.Call{Request: req, Credential: "sk-ant-test"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	resp := out.Response
	if resp.OutputText != "Hello" {
		t.Errorf("output_text = %q, want Hello", resp.OutputText)
	}
	if len(resp.Output) != 2 {
		t.Fatalf("output = %d items, want 2", len(resp.Output))
	}
	fc := resp.Output[1].FunctionCall
	if fc == nil || fc.Name != "get_weather" || fc.CallID != "toolu_1" {
		t.Fatalf("output[1] = %+v, want get_weather call", resp.Output[1])
	}
	if fc.Arguments != `{"city":"London"}` {
		t.Errorf("arguments = %q", fc.Arguments)
	}
	if resp.Usage.TotalTokens != 19 {
		t.Errorf("total_tokens = %d, want 19", resp.Usage.TotalTokens)
	}
}

func TestAdapter_Chat_Streaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","model":"claude-x","usage":{"input_tokens":25,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Let me check."}}

event: content_block_start
data: {"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}

event: ping
data: {"type":"ping"}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Checking"}}

event: content_block_start
data: {"type":"content_block_start","index":2,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{}}}

event: content_block_delta
data: {"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"{\"a\""}}

event: content_block_delta
data: {"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":":1}"}}

event: content_block_stop
data: {"type":"content_block_stop","index":2}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":40}}

event: message_stop
data: {"type":"message_stop"}

`)
	}))
	defer srv.Close()

	a, _ := New(provider.Config{Model: "claude-x", BaseURL: srv.URL})
	req := &api.CreateResponseRequest{Input: []api.Item{api.NewUserMessage("weather?")}, Stream: true}
	out, err := a.Chat(context.Background(), &provider.Call{Request: req})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	var (
		kinds []provider.EventKind
		args  strings.Builder
		usage api.Usage
	)
	for ev := range out.Stream {
		kinds = append(kinds, ev.Kind)
		switch ev.Kind {
		case provider.EventToolCallDelta:
			if ev.Index != 2 {
				t.Errorf("tool call index = %d, want 2", ev.Index)
			}
			args.WriteString(ev.Delta)
		case provider.EventUsage:
			usage.Merge(*ev.Usage)
		}
	}

	want := []provider.EventKind{
		provider.EventUsage,
		provider.EventReasoningDelta,
		provider.EventHeartbeat,
		provider.EventTextDelta,
		provider.EventToolCallDelta,
		provider.EventToolCallDelta,
		provider.EventToolCallDelta,
		provider.EventUsage,
		provider.EventDone,
	}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
	if args.String() != `{"a":1}` {
		t.Errorf("arguments = %q, want %q", args.String(), `{"a":1}`)
	}
	if usage.InputTokens != 25 || usage.OutputTokens != 40 {
		t.Errorf("usage = %+v, want input 25 output 40", usage)
	}
}

func TestAdapter_Chat_StreamTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"a\"}}\n\n")
	}))
	defer srv.Close()

	a, _ := New(provider.Config{Model: "m", BaseURL: srv.URL})
	req := &api.CreateResponseRequest{Input: []api.Item{api.NewUserMessage("hi")}, Stream: true}
	out, err := a.Chat(context.Background(), &provider.Call{Request: req})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	var last provider.Event
	for ev := range out.Stream {
		last = ev
	}
	if last.Kind != provider.EventError || !errors.Is(last.Err, errStreamTruncated) {
		t.Errorf("last event = %+v, want truncation error", last)
	}
}

func TestAdapter_Chat_OverloadedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer srv.Close()

	a, _ := New(provider.Config{Model: "m", BaseURL: srv.URL})
	req := &api.CreateResponseRequest{Input: []api.Item{api.NewUserMessage("hi")}}
	_, err := a.Chat(context.Background(), &provider.Call{Request: req})

	var f *provider.Failure
	if !errors.As(err, &f) || f.Status != 529 {
		t.Fatalf("err = %v, want failure with status 529", err)
	}
	if !provider.IsRetryable(err) {
		t.Error("overloaded failure should be retryable")
	}
}

func TestTranslateInput_MergesTurns(t *testing.T) {
	req := &api.CreateResponseRequest{
		Instructions: "Be brief.",
		Input: []api.Item{
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleDeveloper, Content: []api.ContentPart{{Type: "input_text", Text: "Metric units."}}}},
			api.NewUserMessage("weather in London and Paris?"),
			{Type: api.ItemTypeFunctionCall, FunctionCall: &api.FunctionCallData{Name: "get_weather", CallID: "c1", Arguments: `{"city":"London"}`}},
			{Type: api.ItemTypeFunctionCall, FunctionCall: &api.FunctionCallData{Name: "get_weather", CallID: "c2", Arguments: `not json`}},
			{Type: api.ItemTypeFunctionCallOutput, FunctionCallOutput: &api.FunctionCallOutputData{CallID: "c1", Output: "12C"}},
			{Type: api.ItemTypeFunctionCallOutput, FunctionCallOutput: &api.FunctionCallOutputData{CallID: "c2", Output: "15C"}},
		},
	}
	system, msgs := translateInput(req)

	if system != "Be brief.\n\nMetric units." {
		t.Errorf("system = %q", system)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[1].Role != "assistant" || len(msgs[1].Content) != 2 {
		t.Errorf("assistant turn = %+v, want two tool_use blocks", msgs[1])
	}
	if string(msgs[1].Content[1].Input) != "{}" {
		t.Errorf("invalid arguments = %s, want {}", msgs[1].Content[1].Input)
	}
	if msgs[2].Role != "user" || len(msgs[2].Content) != 2 || msgs[2].Content[0].Type != "tool_result" {
		t.Errorf("user turn = %+v, want two tool_result blocks", msgs[2])
	}
}

func TestTranslateRequest_ToolChoiceAndThinking(t *testing.T) {
	temp := 0.2
	tools := []api.ToolDefinition{{Type: "function", Name: "lookup"}}

	tests := []struct {
		name       string
		choice     *api.ToolChoice
		wantTools  int
		wantChoice *toolChoice
	}{
		{"no choice", nil, 1, nil},
		{"auto", &api.ToolChoiceAuto, 1, &toolChoice{Type: "auto"}},
		{"required", &api.ToolChoiceRequired, 1, &toolChoice{Type: "any"}},
		{"none", &api.ToolChoiceNone, 0, nil},
		{"named", &api.ToolChoice{Function: &api.ToolChoiceFunction{Type: "function", Name: "lookup"}}, 1, &toolChoice{Type: "tool", Name: "lookup"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &api.CreateResponseRequest{Input: []api.Item{api.NewUserMessage("x")}, Tools: tools, ToolChoice: tt.choice}
			mr := translateRequest("m", &provider.Call{Request: req}, false)
			if len(mr.Tools) != tt.wantTools {
				t.Errorf("tools = %d, want %d", len(mr.Tools), tt.wantTools)
			}
			if (mr.ToolChoice == nil) != (tt.wantChoice == nil) || (mr.ToolChoice != nil && *mr.ToolChoice != *tt.wantChoice) {
				t.Errorf("tool_choice = %+v, want %+v", mr.ToolChoice, tt.wantChoice)
			}
		})
	}

	req := &api.CreateResponseRequest{Input: []api.Item{api.NewUserMessage("x")}, Temperature: &temp}
	mr := translateRequest("m", &provider.Call{Request: req, Hint: provider.Hint{ReasoningEffort: "high"}}, false)
	if mr.Thinking == nil || mr.Thinking.BudgetTokens != 8192 {
		t.Fatalf("thinking = %+v, want budget 8192", mr.Thinking)
	}
	if mr.MaxTokens <= mr.Thinking.BudgetTokens {
		t.Errorf("max_tokens = %d, must exceed budget", mr.MaxTokens)
	}
	if mr.Temperature != nil {
		t.Error("temperature should be dropped when thinking is enabled")
	}
}

func TestImageSourceFor(t *testing.T) {
	src := imageSourceFor("data:image/png;base64,AAAA")
	if src.Type != "base64" || src.MediaType != "image/png" || src.Data != "AAAA" {
		t.Errorf("data uri source = %+v", src)
	}
	src = imageSourceFor("https://example.com/a.png")
	if src.Type != "url" || src.URL != "https://example.com/a.png" {
		t.Errorf("url source = %+v", src)
	}
}
