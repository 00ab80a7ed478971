package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/provider"
)

// DefaultMaxTokens applies when the request sets no max_output_tokens;
// the Messages API requires the field.
const DefaultMaxTokens = 4096

// thinkingBudgets maps reasoning effort to an extended-thinking budget.
var thinkingBudgets = map[string]int{
	"high":  8192,
	"xhigh": 16384,
}

// translateRequest converts a canonical request to the Messages API format.
func translateRequest(model string, call *provider.Call, stream bool) *messagesRequest {
	req := call.Request
	system, msgs := translateInput(req)

	mr := &messagesRequest{
		Model:         model,
		Messages:      msgs,
		System:        system,
		MaxTokens:     DefaultMaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        stream,
	}
	if req.MaxOutputTokens != nil && *req.MaxOutputTokens > 0 {
		mr.MaxTokens = *req.MaxOutputTokens
	}
	if req.User != "" {
		mr.Metadata = &requestMetadata{UserID: req.User}
	}

	choice, hasChoice := api.NormalizeToolChoice(req.ToolChoice)
	if !hasChoice || choice.Mode != "none" {
		for _, t := range api.NormalizeTools(req.Tools) {
			mr.Tools = append(mr.Tools, tool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.Parameters,
			})
		}
	}
	if len(mr.Tools) > 0 && hasChoice {
		switch choice.Mode {
		case "auto":
			mr.ToolChoice = &toolChoice{Type: "auto"}
		case "required":
			mr.ToolChoice = &toolChoice{Type: "any"}
		case "function":
			mr.ToolChoice = &toolChoice{Type: "tool", Name: choice.Name}
		}
	}

	if budget, ok := thinkingBudgets[strings.ToLower(call.Hint.ReasoningEffort)]; ok {
		mr.Thinking = &thinkingConfig{Type: "enabled", BudgetTokens: budget}
		if mr.MaxTokens <= budget {
			mr.MaxTokens = budget + DefaultMaxTokens
		}
		// Sampling parameters are fixed while thinking is enabled.
		mr.Temperature = nil
		mr.TopP = nil
	}

	return mr
}

// translateInput splits canonical items into the system prompt and the
// alternating conversation. Instructions come first in the system prompt,
// followed by system and developer messages in order.
func translateInput(req *api.CreateResponseRequest) (string, []message) {
	var system []string
	if req.Instructions != "" {
		system = append(system, req.Instructions)
	}

	var msgs []message
	appendBlock := func(role string, block contentBlock) {
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, block)
			return
		}
		msgs = append(msgs, message{Role: role, Content: []contentBlock{block}})
	}

	for _, item := range req.Input {
		switch item.Type {
		case api.ItemTypeMessage:
			m := item.Message
			if m == nil {
				continue
			}
			switch m.Role {
			case api.RoleSystem, api.RoleDeveloper:
				if text := m.Text(); text != "" {
					system = append(system, text)
				}
			case api.RoleAssistant:
				if text := m.Text(); text != "" {
					appendBlock("assistant", contentBlock{Type: "text", Text: text})
				}
			default:
				for _, p := range m.Content {
					if p.Type == "input_image" {
						appendBlock("user", contentBlock{Type: "image", Source: imageSourceFor(p.ImageURL)})
						continue
					}
					if p.Text != "" {
						appendBlock("user", contentBlock{Type: "text", Text: p.Text})
					}
				}
			}

		case api.ItemTypeFunctionCall:
			fc := item.FunctionCall
			if fc == nil || strings.TrimSpace(fc.Name) == "" {
				continue
			}
			appendBlock("assistant", contentBlock{
				Type:  "tool_use",
				ID:    fc.CallID,
				Name:  fc.Name,
				Input: argumentsObject(fc.Arguments),
			})

		case api.ItemTypeFunctionCallOutput:
			fo := item.FunctionCallOutput
			if fo == nil {
				continue
			}
			appendBlock("user", contentBlock{Type: "tool_result", ToolUseID: fo.CallID, Content: fo.Output})
		}
	}

	return strings.Join(system, "\n\n"), msgs
}

// argumentsObject returns the arguments as a JSON object. Anything that is
// not an object becomes {}.
func argumentsObject(args string) json.RawMessage {
	trimmed := strings.TrimSpace(args)
	var obj map[string]json.RawMessage
	if trimmed == "" || json.Unmarshal([]byte(trimmed), &obj) != nil || obj == nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(trimmed)
}

// imageSourceFor converts an image URL or data URI into an image source.
func imageSourceFor(url string) *imageSource {
	if rest, ok := strings.CutPrefix(url, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if found {
			mediaType, _, _ := strings.Cut(meta, ";")
			return &imageSource{Type: "base64", MediaType: mediaType, Data: data}
		}
	}
	return &imageSource{Type: "url", URL: url}
}

// translateResponse converts a Messages API response to a canonical response.
func translateResponse(configuredModel string, resp *messagesResponse) *api.Response {
	a := provider.Assembled{
		Model:  resp.Model,
		Status: mapStopReason(resp.StopReason),
		Usage:  translateUsage(resp.Usage),
	}

	var text, reasoning strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			reasoning.WriteString(block.Thinking)
		case "tool_use":
			args := "{}"
			if len(block.Input) > 0 {
				args = string(block.Input)
			}
			a.ToolCalls = append(a.ToolCalls, provider.ToolCall{CallID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	a.Text = text.String()
	a.Reasoning = reasoning.String()

	return provider.BuildResponse(configuredModel, a)
}

func translateUsage(u *usage) api.Usage {
	if u == nil {
		return api.Usage{}
	}
	return api.Usage{
		InputTokens:        u.InputTokens,
		OutputTokens:       u.OutputTokens,
		InputTokensDetails: api.InputTokensDetails{CachedTokens: u.CacheReadInputTokens},
	}
}

// mapStopReason maps a stop_reason to a response status.
func mapStopReason(reason string) api.ResponseStatus {
	if reason == "max_tokens" {
		return api.ResponseStatusIncomplete
	}
	return api.ResponseStatusCompleted
}
