package provider

import (
	"time"

	"github.com/rhuss/weiche/pkg/api"
)

// ToolCall is a complete function call extracted from a backend response.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string
}

// Assembled collects what an adapter extracted from one non-streaming
// backend response.
type Assembled struct {
	// Model is the backend-reported model; the configured model is used when empty.
	Model     string
	Reasoning string
	Text      string
	Refusal   string
	ToolCalls []ToolCall
	Usage     api.Usage
	Status    api.ResponseStatus
}

// BuildResponse turns extracted content into a completed canonical
// response. Output order is reasoning, then the assistant message, then
// function calls. A response with no output at all still carries an
// empty assistant message.
func BuildResponse(configuredModel string, a Assembled) *api.Response {
	now := time.Now().Unix()
	model := a.Model
	if model == "" {
		model = configuredModel
	}
	status := a.Status
	if status == "" {
		status = api.ResponseStatusCompleted
	}

	var output []api.Item
	if a.Reasoning != "" {
		output = append(output, api.Item{
			ID:        api.NewReasoningID(),
			Type:      api.ItemTypeReasoning,
			Status:    api.ItemStatusCompleted,
			Reasoning: api.NewReasoningData(a.Reasoning),
		})
	}

	if a.Text != "" || a.Refusal != "" || len(a.ToolCalls) == 0 {
		msg := &api.MessageData{Role: api.RoleAssistant, Output: []api.OutputContentPart{}}
		if a.Text != "" || a.Refusal == "" {
			msg.Output = append(msg.Output, api.OutputContentPart{Type: api.PartOutputText, Text: a.Text})
		}
		if a.Refusal != "" {
			msg.Output = append(msg.Output, api.OutputContentPart{Type: api.PartRefusal, Refusal: a.Refusal})
		}
		output = append(output, api.Item{
			ID:      api.NewMessageID(),
			Type:    api.ItemTypeMessage,
			Status:  api.ItemStatusCompleted,
			Message: msg,
		})
	}

	for _, tc := range a.ToolCalls {
		callID := tc.CallID
		if callID == "" {
			callID = api.NewCallID()
		}
		output = append(output, api.Item{
			ID:     api.NewFunctionCallID(),
			Type:   api.ItemTypeFunctionCall,
			Status: api.ItemStatusCompleted,
			FunctionCall: &api.FunctionCallData{
				Name:      tc.Name,
				CallID:    callID,
				Arguments: tc.Arguments,
			},
		})
	}

	usage := a.Usage
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}

	return &api.Response{
		ID:          api.NewResponseID(),
		Object:      "response",
		CreatedAt:   now,
		CompletedAt: &now,
		Status:      status,
		Model:       model,
		Output:      output,
		OutputText:  api.DeriveOutputText(output),
		Usage:       &usage,
		Metadata:    map[string]any{},
	}
}

// EstimateTokens approximates a token count as ceil(len/4) for backends
// that do not report reasoning tokens separately.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
