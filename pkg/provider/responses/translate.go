package responses

import (
	"strings"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/provider"
)

// translateRequest converts a canonical request to the Responses API wire
// format. Tools are normalized and the route's reasoning effort becomes
// reasoning.effort.
func translateRequest(model string, call *provider.Call) *responsesRequest {
	req := call.Request
	rr := &responsesRequest{
		Model:              model,
		Input:              translateInput(req.Input),
		Instructions:       req.Instructions,
		Tools:              api.NormalizeTools(req.Tools),
		ParallelToolCalls:  req.ParallelToolCalls,
		MaxToolCalls:       req.MaxToolCalls,
		PreviousResponseID: req.PreviousResponseID,
		Store:              req.Store,
		Stream:             req.Stream,
		Temperature:        req.Temperature,
		TopP:               req.TopP,
		MaxOutputTokens:    req.MaxOutputTokens,
		User:               req.User,
		Metadata:           req.Metadata,
	}

	if choice, ok := api.NormalizeToolChoice(req.ToolChoice); ok {
		rr.ToolChoice = choice.ResponsesForm()
	}

	var summary *string
	if req.Reasoning != nil {
		summary = req.Reasoning.Summary
	}
	if effort := call.Hint.ReasoningEffort; effort != "" || summary != nil {
		rr.Reasoning = &responsesReasoning{Effort: effort, Summary: summary}
	}

	if req.Text != nil && req.Text.Format != nil {
		rr.Text = &responsesTextConfig{Format: req.Text.Format}
	}

	return rr
}

// translateInput converts canonical items to Responses input items.
// Reasoning items are dropped: the backend only accepts reasoning it
// produced itself, identified by its own item ids.
func translateInput(items []api.Item) []inputItem {
	out := make([]inputItem, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case api.ItemTypeMessage:
			if item.Message == nil {
				continue
			}
			out = append(out, translateMessage(item.Message))

		case api.ItemTypeFunctionCall:
			fc := item.FunctionCall
			if fc == nil || strings.TrimSpace(fc.Name) == "" {
				continue
			}
			out = append(out, inputItem{
				Type:      "function_call",
				CallID:    fc.CallID,
				Name:      fc.Name,
				Arguments: fc.Arguments,
			})

		case api.ItemTypeFunctionCallOutput:
			fo := item.FunctionCallOutput
			if fo == nil {
				continue
			}
			output := fo.Output
			out = append(out, inputItem{
				Type:   "function_call_output",
				CallID: fo.CallID,
				Output: &output,
			})
		}
	}
	return out
}

func translateMessage(m *api.MessageData) inputItem {
	item := inputItem{Type: "message", Role: string(m.Role)}

	switch m.Role {
	case api.RoleUser:
		parts := make([]inputPart, 0, len(m.Content))
		for _, p := range m.Content {
			if p.Type == "input_image" {
				parts = append(parts, inputPart{Type: "input_image", ImageURL: p.ImageURL, Detail: p.Detail})
				continue
			}
			parts = append(parts, inputPart{Type: "input_text", Text: p.Text})
		}
		item.Content = parts
	case api.RoleAssistant:
		item.Content = []inputPart{{Type: "output_text", Text: m.Text()}}
	default:
		item.Content = m.Text()
	}
	return item
}

// translateResponse converts a Responses API response to a canonical response.
func translateResponse(configuredModel string, resp *responsesResponse) *api.Response {
	a := provider.Assembled{
		Model:  resp.Model,
		Status: mapResponseStatus(resp.Status),
	}
	if resp.Usage != nil {
		a.Usage = *resp.Usage
	}

	var reasoning, text, refusal strings.Builder
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, p := range item.Content {
				switch p.Type {
				case "output_text":
					text.WriteString(p.Text)
				case "refusal":
					refusal.WriteString(p.Refusal)
				}
			}
		case "reasoning":
			for _, p := range item.Summary {
				reasoning.WriteString(p.Text)
			}
			for _, p := range item.Content {
				reasoning.WriteString(p.Text)
			}
		case "function_call":
			a.ToolCalls = append(a.ToolCalls, provider.ToolCall{
				CallID:    item.CallID,
				Name:      item.Name,
				Arguments: item.Arguments,
			})
		}
	}
	a.Reasoning = reasoning.String()
	a.Text = text.String()
	a.Refusal = refusal.String()

	return provider.BuildResponse(configuredModel, a)
}

// mapResponseStatus maps the Responses API status string to the internal type.
func mapResponseStatus(status string) api.ResponseStatus {
	switch status {
	case "incomplete":
		return api.ResponseStatusIncomplete
	case "failed":
		return api.ResponseStatusFailed
	default:
		return api.ResponseStatusCompleted
	}
}
