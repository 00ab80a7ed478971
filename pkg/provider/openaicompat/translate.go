package openaicompat

import (
	"strings"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/provider"
)

// TranslateRequest converts a canonical request into a Chat Completions
// request for the given backend kind.
func TranslateRequest(kind, model string, call *provider.Call, stream bool) ChatCompletionRequest {
	req := call.Request
	cr := ChatCompletionRequest{
		Model:             model,
		Messages:          translateMessages(kind, req),
		Temperature:       req.Temperature,
		TopP:              req.TopP,
		MaxTokens:         req.MaxOutputTokens,
		Stop:              req.Stop,
		Stream:            stream,
		ParallelToolCalls: req.ParallelToolCalls,
		User:              req.User,
		ResponseFormat:    translateTextFormat(req.Text),
	}

	// When streaming, enable usage reporting in the stream.
	if stream {
		cr.StreamOptions = &ChatStreamOptions{IncludeUsage: true}
	}

	for _, t := range api.NormalizeTools(req.Tools) {
		cr.Tools = append(cr.Tools, ChatTool{
			Type: "function",
			Function: ChatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
				Strict:      t.Strict,
			},
		})
	}
	if choice, ok := api.NormalizeToolChoice(req.ToolChoice); ok {
		cr.ToolChoice = choice.ChatForm()
	} else if len(cr.Tools) > 0 {
		cr.ToolChoice = "auto"
	}

	effort := call.Hint.ReasoningEffort
	if kind == KindZhipu {
		if reminder := reasoningReminder(effort); reminder != "" {
			cr.Messages = append(cr.Messages, ChatMessage{Role: "system", Content: reminder})
		}
	} else if effort != "" {
		cr.ReasoningEffort = nativeEffort(effort)
	}

	return cr
}

// nativeEffort maps the gateway's effort scale onto the values Chat
// Completions backends accept.
func nativeEffort(effort string) string {
	if effort == "xhigh" {
		return "high"
	}
	return effort
}

// translateMessages flattens canonical items into chat messages. System
// and developer messages become system messages. Consecutive function
// calls are attached to one assistant message. Calls without a name and
// outputs without a call id cannot be represented and are dropped.
func translateMessages(kind string, req *api.CreateResponseRequest) []ChatMessage {
	var msgs []ChatMessage

	for _, item := range req.Input {
		switch item.Type {
		case api.ItemTypeMessage:
			if item.Message == nil {
				continue
			}
			msgs = append(msgs, translateMessage(item.Message))

		case api.ItemTypeFunctionCall:
			fc := item.FunctionCall
			if fc == nil || strings.TrimSpace(fc.Name) == "" {
				continue
			}
			tc := ChatToolCall{
				ID:   fc.CallID,
				Type: "function",
				Function: ChatFunctionCall{
					Name:      fc.Name,
					Arguments: fc.Arguments,
				},
			}
			if n := len(msgs); n > 0 && msgs[n-1].Role == "assistant" && msgs[n-1].ToolCallID == "" {
				msgs[n-1].ToolCalls = append(msgs[n-1].ToolCalls, tc)
				continue
			}
			msgs = append(msgs, ChatMessage{Role: "assistant", Content: nil, ToolCalls: []ChatToolCall{tc}})

		case api.ItemTypeFunctionCallOutput:
			out := item.FunctionCallOutput
			if out == nil || out.CallID == "" {
				continue
			}
			msgs = append(msgs, ChatMessage{Role: "tool", ToolCallID: out.CallID, Content: out.Output})

		case api.ItemTypeReasoning:
			// Chat Completions has no input representation for reasoning.
		}
	}

	if req.Instructions == "" {
		return msgs
	}
	if kind == KindZhipu && hasSystemMessage(msgs) {
		return msgs
	}
	return append([]ChatMessage{{Role: "system", Content: req.Instructions}}, msgs...)
}

func translateMessage(m *api.MessageData) ChatMessage {
	role := string(m.Role)
	if m.Role == api.RoleDeveloper {
		role = "system"
	}

	if m.Role != api.RoleUser {
		return ChatMessage{Role: role, Content: m.Text()}
	}

	hasImage := false
	for _, p := range m.Content {
		if p.Type == "input_image" {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return ChatMessage{Role: role, Content: m.Text()}
	}

	parts := make([]ChatContentPart, 0, len(m.Content))
	for _, p := range m.Content {
		if p.Type == "input_image" {
			parts = append(parts, ChatContentPart{
				Type:     "image_url",
				ImageURL: &ChatImageURL{URL: p.ImageURL, Detail: p.Detail},
			})
			continue
		}
		parts = append(parts, ChatContentPart{Type: "text", Text: p.Text})
	}
	return ChatMessage{Role: role, Content: parts}
}

func hasSystemMessage(msgs []ChatMessage) bool {
	for _, m := range msgs {
		if m.Role == "system" {
			return true
		}
	}
	return false
}

// translateTextFormat maps text.format onto response_format.
func translateTextFormat(tc *api.TextConfig) any {
	if tc == nil || tc.Format == nil {
		return nil
	}
	switch tc.Format.Type {
	case "json_object":
		return map[string]string{"type": "json_object"}
	case "json_schema":
		schema := map[string]any{"name": tc.Format.Name}
		if len(tc.Format.Schema) > 0 {
			schema["schema"] = tc.Format.Schema
		}
		if tc.Format.Strict != nil {
			schema["strict"] = *tc.Format.Strict
		}
		return map[string]any{"type": "json_schema", "json_schema": schema}
	}
	return nil
}
