package openaicompat

import (
	"strings"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/provider"
)

// TranslateResponse converts a ChatCompletionResponse into a canonical
// response. Only choices[0] is used. When the backend put its answer only
// into reasoning_content, that text is used as the answer.
func TranslateResponse(configuredModel string, resp *ChatCompletionResponse) *api.Response {
	a := provider.Assembled{
		Model: resp.Model,
		Usage: translateUsage(resp.Usage),
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		msg := choice.Message

		reasoning := firstString(msg.ReasoningContent, msg.Reasoning)
		if msg.Content != nil {
			a.Text = *msg.Content
			a.Reasoning = reasoning
		} else if len(msg.ToolCalls) == 0 {
			a.Text = reasoning
		} else {
			a.Reasoning = reasoning
		}
		if msg.Refusal != nil {
			a.Refusal = *msg.Refusal
		}

		for _, tc := range msg.ToolCalls {
			if strings.TrimSpace(tc.Function.Name) == "" {
				continue
			}
			a.ToolCalls = append(a.ToolCalls, provider.ToolCall{
				CallID:    tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		a.Status = MapFinishReason(choice.FinishReason)

		if a.Reasoning != "" && a.Usage.OutputTokensDetails.ReasoningTokens == 0 {
			a.Usage.OutputTokensDetails.ReasoningTokens = max(1, provider.EstimateTokens(a.Reasoning))
		}
	}

	return provider.BuildResponse(configuredModel, a)
}

// MapFinishReason maps a Chat Completions finish_reason to a response status.
func MapFinishReason(reason string) api.ResponseStatus {
	switch reason {
	case "length", "content_filter":
		return api.ResponseStatusIncomplete
	default:
		return api.ResponseStatusCompleted
	}
}

func translateUsage(u *ChatUsage) api.Usage {
	if u == nil {
		return api.Usage{}
	}
	usage := api.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
	if u.PromptTokensDetails != nil {
		usage.InputTokensDetails.CachedTokens = u.PromptTokensDetails.CachedTokens
	}
	if u.CompletionTokensDetails != nil {
		usage.OutputTokensDetails.ReasoningTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	return usage
}

func firstString(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}
