package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

func handleResponses(w http.ResponseWriter, r *http.Request) {
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
	p := responsesPrompt(body)
	rep := answer(p)

	if p.Stream {
		streamResponses(w, p, rep)
		return
	}
	writeJSON(w, http.StatusOK, responsesBody(p, rep, "completed"))
}

// responsesPrompt reads a Responses API request body.
func responsesPrompt(body []byte) prompt {
	req := gjson.ParseBytes(body)
	p := prompt{
		Model:     req.Get("model").String(),
		Stream:    req.Get("stream").Bool(),
		HasTools:  len(req.Get("tools").Array()) > 0,
		HasSystem: req.Get("instructions").String() != "",
	}
	input := req.Get("input")
	if input.Type == gjson.String {
		p.LastUser = input.String()
		return p
	}
	for _, item := range input.Array() {
		if t := item.Get("type").String(); t != "" && t != "message" {
			continue
		}
		switch item.Get("role").String() {
		case "system", "developer":
			p.HasSystem = true
		case "user":
			p.LastUser, p.HasImage = contentText(item.Get("content"), p.HasImage)
		}
	}
	return p
}

func responsesOutput(rep reply) []any {
	var output []any
	if rep.Reasoning != "" {
		output = append(output, map[string]any{
			"id":      "rs_mock_1",
			"type":    "reasoning",
			"summary": []any{map[string]any{"type": "summary_text", "text": rep.Reasoning}},
		})
	}
	if rep.Text != "" {
		output = append(output, map[string]any{
			"id":     "msg_mock_1",
			"type":   "message",
			"role":   "assistant",
			"status": "completed",
			"content": []any{map[string]any{
				"type": "output_text",
				"text": rep.Text,
			}},
		})
	}
	if tc := rep.ToolCall; tc != nil {
		output = append(output, map[string]any{
			"id":        "fc_mock_1",
			"type":      "function_call",
			"status":    "completed",
			"call_id":   tc.ID,
			"name":      tc.Name,
			"arguments": tc.Arguments,
		})
	}
	return output
}

func responsesBody(p prompt, rep reply, status string) map[string]any {
	out := rep.outputTokens()
	body := map[string]any{
		"id":         "resp_mock",
		"object":     "response",
		"created_at": time.Now().Unix(),
		"status":     status,
		"model":      modelOr(p.Model),
		"output":     responsesOutput(rep),
	}
	if status == "completed" {
		body["usage"] = map[string]any{
			"input_tokens":  promptTokens,
			"output_tokens": out,
			"total_tokens":  promptTokens + out,
			"output_tokens_details": map[string]any{
				"reasoning_tokens": rep.reasoningTokens(),
			},
		}
	}
	return body
}

func streamResponses(w http.ResponseWriter, p prompt, rep reply) {
	f := sse(w)
	if f == nil {
		return
	}
	seq := 0
	emit := func(event string, v map[string]any) {
		v["type"] = event
		v["sequence_number"] = seq
		seq++
		writeEvent(w, f, event, v)
	}

	emit("response.created", map[string]any{"response": responsesBody(p, reply{}, "in_progress")})

	index := 0
	if rep.Reasoning != "" {
		for _, part := range chunks(rep.Reasoning) {
			emit("response.reasoning_summary_text.delta", map[string]any{"output_index": index, "item_id": "rs_mock_1", "delta": part})
		}
		index++
	}
	if rep.Text != "" {
		emit("response.output_item.added", map[string]any{
			"output_index": index,
			"item":         map[string]any{"id": "msg_mock_1", "type": "message", "role": "assistant"},
		})
		for _, part := range chunks(rep.Text) {
			emit("response.output_text.delta", map[string]any{"output_index": index, "item_id": "msg_mock_1", "delta": part})
		}
		emit("response.output_text.done", map[string]any{"output_index": index, "item_id": "msg_mock_1", "text": rep.Text})
		index++
	}
	if tc := rep.ToolCall; tc != nil {
		emit("response.output_item.added", map[string]any{
			"output_index": index,
			"item": map[string]any{
				"id": "fc_mock_1", "type": "function_call", "call_id": tc.ID, "name": tc.Name, "arguments": "",
			},
		})
		for _, part := range argumentChunks(tc.Arguments) {
			emit("response.function_call_arguments.delta", map[string]any{"output_index": index, "item_id": "fc_mock_1", "delta": part})
		}
	}

	emit("response.completed", map[string]any{"response": responsesBody(p, rep, "completed")})
}
