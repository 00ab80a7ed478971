package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// handleGenerateContent serves {model}:generateContent and
// {model}:streamGenerateContent?alt=sse.
func handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	model, method, ok := strings.Cut(r.PathValue("call"), ":")
	if !ok || (method != "generateContent" && method != "streamGenerateContent") {
		geminiError(w, http.StatusNotFound, "NOT_FOUND", "unknown method")
		return
	}
	if status, ok := forcedFailure(r); ok {
		geminiError(w, status, "MOCK_ERROR", fmt.Sprintf("forced failure %d", status))
		return
	}

	body, _ := io.ReadAll(r.Body)
	if !gjson.ValidBytes(body) {
		geminiError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request")
		return
	}
	p := geminiPrompt(body)
	p.Model = model
	rep := answer(p)

	if method == "streamGenerateContent" {
		streamGemini(w, p, rep)
		return
	}

	var parts []any
	if rep.Reasoning != "" {
		parts = append(parts, map[string]any{"text": rep.Reasoning, "thought": true})
	}
	if rep.Text != "" {
		parts = append(parts, map[string]any{"text": rep.Text})
	}
	if tc := rep.ToolCall; tc != nil {
		parts = append(parts, map[string]any{"functionCall": map[string]any{"name": tc.Name, "args": json.RawMessage(tc.Arguments)}})
	}
	writeJSON(w, http.StatusOK, geminiChunk(p, parts, "STOP", rep))
}

func geminiError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": msg, "status": code},
	})
}

// geminiPrompt reads a GenerateContent request body.
func geminiPrompt(body []byte) prompt {
	req := gjson.ParseBytes(body)
	p := prompt{
		HasTools:  len(req.Get("tools.0.functionDeclarations").Array()) > 0,
		HasSystem: len(req.Get("systemInstruction.parts").Array()) > 0,
	}
	for _, c := range req.Get("contents").Array() {
		if c.Get("role").String() != "user" {
			continue
		}
		if text, img := contentText(c.Get("parts"), p.HasImage); text != "" || img {
			p.LastUser, p.HasImage = text, img
		}
	}
	return p
}

// geminiChunk builds one response body. finish and usage are only set on
// the final chunk.
func geminiChunk(p prompt, parts []any, finish string, rep reply) map[string]any {
	candidate := map[string]any{
		"index":   0,
		"content": map[string]any{"role": "model", "parts": parts},
	}
	chunk := map[string]any{
		"candidates":   []any{candidate},
		"modelVersion": modelOr(p.Model),
	}
	if finish != "" {
		candidate["finishReason"] = finish
		out := rep.outputTokens()
		chunk["usageMetadata"] = map[string]any{
			"promptTokenCount":     promptTokens,
			"candidatesTokenCount": out - rep.reasoningTokens(),
			"thoughtsTokenCount":   rep.reasoningTokens(),
			"totalTokenCount":      promptTokens + out,
		}
	}
	return chunk
}

func streamGemini(w http.ResponseWriter, p prompt, rep reply) {
	f := sse(w)
	if f == nil {
		return
	}
	for _, part := range chunks(rep.Reasoning) {
		writeEvent(w, f, "", geminiChunk(p, []any{map[string]any{"text": part, "thought": true}}, "", rep))
	}
	for _, part := range chunks(rep.Text) {
		writeEvent(w, f, "", geminiChunk(p, []any{map[string]any{"text": part}}, "", rep))
	}
	var last []any
	if tc := rep.ToolCall; tc != nil {
		last = []any{map[string]any{"functionCall": map[string]any{"name": tc.Name, "args": json.RawMessage(tc.Arguments)}}}
	}
	writeEvent(w, f, "", geminiChunk(p, last, "STOP", rep))
}
