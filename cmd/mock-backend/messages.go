package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

func handleMessages(w http.ResponseWriter, r *http.Request) {
	if status, ok := forcedFailure(r); ok {
		writeJSON(w, status, map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "mock_error", "message": fmt.Sprintf("forced failure %d", status)},
		})
		return
	}

	body, _ := io.ReadAll(r.Body)
	if !gjson.ValidBytes(body) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "invalid_request_error", "message": "invalid request"},
		})
		return
	}
	p := messagesPrompt(body)
	rep := answer(p)

	if p.Stream {
		streamMessages(w, p, rep)
		return
	}

	var content []any
	if rep.Reasoning != "" {
		content = append(content, map[string]any{"type": "thinking", "thinking": rep.Reasoning, "signature": "mock"})
	}
	if rep.Text != "" {
		content = append(content, map[string]any{"type": "text", "text": rep.Text})
	}
	stop := "end_turn"
	if tc := rep.ToolCall; tc != nil {
		stop = "tool_use"
		content = append(content, map[string]any{
			"type": "tool_use", "id": tc.ID, "name": tc.Name, "input": json.RawMessage(tc.Arguments),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          "msg_mock",
		"type":        "message",
		"role":        "assistant",
		"model":       modelOr(p.Model),
		"content":     content,
		"stop_reason": stop,
		"usage":       map[string]any{"input_tokens": promptTokens, "output_tokens": rep.outputTokens()},
	})
}

// messagesPrompt reads a Messages API request body.
func messagesPrompt(body []byte) prompt {
	req := gjson.ParseBytes(body)
	p := prompt{
		Model:     req.Get("model").String(),
		Stream:    req.Get("stream").Bool(),
		HasTools:  len(req.Get("tools").Array()) > 0,
		HasSystem: req.Get("system").Exists() && req.Get("system").String() != "",
	}
	for _, m := range req.Get("messages").Array() {
		if m.Get("role").String() != "user" {
			continue
		}
		// A user turn holding only tool results carries no prompt text.
		if text, img := contentText(m.Get("content"), p.HasImage); text != "" || img {
			p.LastUser, p.HasImage = text, img
		}
	}
	return p
}

func streamMessages(w http.ResponseWriter, p prompt, rep reply) {
	f := sse(w)
	if f == nil {
		return
	}
	emit := func(event string, v map[string]any) {
		v["type"] = event
		writeEvent(w, f, event, v)
	}

	emit("message_start", map[string]any{"message": map[string]any{
		"id": "msg_mock", "type": "message", "role": "assistant", "model": modelOr(p.Model),
		"content": []any{}, "usage": map[string]any{"input_tokens": promptTokens, "output_tokens": 1},
	}})
	emit("ping", map[string]any{})

	index := 0
	if rep.Reasoning != "" {
		emit("content_block_start", map[string]any{"index": index, "content_block": map[string]any{"type": "thinking", "thinking": ""}})
		for _, part := range chunks(rep.Reasoning) {
			emit("content_block_delta", map[string]any{"index": index, "delta": map[string]any{"type": "thinking_delta", "thinking": part}})
		}
		emit("content_block_stop", map[string]any{"index": index})
		index++
	}
	if rep.Text != "" {
		emit("content_block_start", map[string]any{"index": index, "content_block": map[string]any{"type": "text", "text": ""}})
		for _, part := range chunks(rep.Text) {
			emit("content_block_delta", map[string]any{"index": index, "delta": map[string]any{"type": "text_delta", "text": part}})
		}
		emit("content_block_stop", map[string]any{"index": index})
		index++
	}
	stop := "end_turn"
	if tc := rep.ToolCall; tc != nil {
		stop = "tool_use"
		emit("content_block_start", map[string]any{"index": index, "content_block": map[string]any{
			"type": "tool_use", "id": tc.ID, "name": tc.Name, "input": map[string]any{},
		}})
		for _, part := range argumentChunks(tc.Arguments) {
			emit("content_block_delta", map[string]any{"index": index, "delta": map[string]any{"type": "input_json_delta", "partial_json": part}})
		}
		emit("content_block_stop", map[string]any{"index": index})
	}

	emit("message_delta", map[string]any{
		"delta": map[string]any{"stop_reason": stop},
		"usage": map[string]any{"output_tokens": rep.outputTokens()},
	})
	emit("message_stop", map[string]any{})
}
