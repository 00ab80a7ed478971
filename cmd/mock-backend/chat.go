package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role             string     `json:"role"`
	Content          *string    `json:"content"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function funcCall `json:"function"`
}

type funcCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Handler ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if status, ok := forcedFailure(r); ok {
		writeJSON(w, status, map[string]any{
			"error": map[string]any{"message": fmt.Sprintf("forced failure %d", status), "type": "mock_error"},
		})
		return
	}

	body, _ := io.ReadAll(r.Body)
	if !gjson.ValidBytes(body) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"message": "invalid request", "type": "invalid_request_error"},
		})
		return
	}
	p := chatPrompt(body)
	rep := answer(p)

	if p.Stream {
		streamChat(w, p, rep)
		return
	}

	msg := chatMsg{Role: "assistant", ReasoningContent: rep.Reasoning}
	finish := "stop"
	if rep.ToolCall != nil {
		finish = "tool_calls"
		msg.ToolCalls = []toolCall{{
			ID:       rep.ToolCall.ID,
			Type:     "function",
			Function: funcCall{Name: rep.ToolCall.Name, Arguments: rep.ToolCall.Arguments},
		}}
	} else {
		text := rep.Text
		msg.Content = &text
	}

	out := rep.outputTokens()
	writeJSON(w, http.StatusOK, chatResponse{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion",
		Model:   modelOr(p.Model),
		Choices: []chatChoice{{Index: 0, Message: msg, FinishReason: finish}},
		Usage:   chatUsage{PromptTokens: promptTokens, CompletionTokens: out, TotalTokens: promptTokens + out},
	})
}

// chatPrompt reads a Chat Completions request body.
func chatPrompt(body []byte) prompt {
	req := gjson.ParseBytes(body)
	p := prompt{
		Model:    req.Get("model").String(),
		Stream:   req.Get("stream").Bool(),
		HasTools: len(req.Get("tools").Array()) > 0,
	}
	for _, m := range req.Get("messages").Array() {
		switch m.Get("role").String() {
		case "system", "developer":
			p.HasSystem = true
		case "user":
			p.LastUser, p.HasImage = contentText(m.Get("content"), p.HasImage)
		}
	}
	return p
}

// contentText returns the text of a string or parts content value and
// whether an image part was seen.
func contentText(content gjson.Result, hasImage bool) (string, bool) {
	if content.Type == gjson.String {
		return content.String(), hasImage
	}
	var text string
	for _, part := range content.Array() {
		switch part.Get("type").String() {
		case "text", "input_text":
			text = part.Get("text").String()
		case "image_url", "input_image", "image":
			hasImage = true
		}
		if part.Get("inlineData").Exists() {
			hasImage = true
		}
		if t := part.Get("text"); t.Exists() && part.Get("type").String() == "" {
			text = t.String()
		}
	}
	return text, hasImage
}

// --- Streaming ---

func streamChat(w http.ResponseWriter, p prompt, rep reply) {
	f := sse(w)
	if f == nil {
		return
	}
	model := modelOr(p.Model)

	chunk := func(delta map[string]any, finish any) map[string]any {
		return map[string]any{
			"id":     "chatcmpl-mock-stream",
			"object": "chat.completion.chunk",
			"model":  model,
			"choices": []any{map[string]any{
				"index":         0,
				"delta":         delta,
				"finish_reason": finish,
			}},
		}
	}

	writeEvent(w, f, "", chunk(map[string]any{"role": "assistant"}, nil))

	for _, part := range chunks(rep.Reasoning) {
		writeEvent(w, f, "", chunk(map[string]any{"reasoning_content": part}, nil))
	}
	for _, part := range chunks(rep.Text) {
		writeEvent(w, f, "", chunk(map[string]any{"content": part}, nil))
	}

	finish := "stop"
	if tc := rep.ToolCall; tc != nil {
		finish = "tool_calls"
		for i, args := range argumentChunks(tc.Arguments) {
			call := map[string]any{"index": 0, "function": map[string]any{"arguments": args}}
			if i == 0 {
				call["id"] = tc.ID
				call["type"] = "function"
				call["function"] = map[string]any{"name": tc.Name, "arguments": args}
			}
			writeEvent(w, f, "", chunk(map[string]any{"tool_calls": []any{call}}, nil))
		}
	}

	writeEvent(w, f, "", chunk(map[string]any{}, finish))

	// Usage arrives in a separate chunk with no choices, as with
	// stream_options.include_usage.
	out := rep.outputTokens()
	writeEvent(w, f, "", map[string]any{
		"id":      "chatcmpl-mock-stream",
		"object":  "chat.completion.chunk",
		"model":   model,
		"choices": []any{},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": out,
			"total_tokens":      promptTokens + out,
		},
	})

	fmt.Fprintf(w, "data: [DONE]\n\n")
	f.Flush()
}
