package engine

import (
	"time"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/provider"
)

// newResponse returns the in-progress response a stream starts from.
// model is the configured backend model, replaced later by the model the
// backend reports.
func newResponse(req *api.CreateResponseRequest, model string) api.Response {
	resp := api.Response{
		ID:        api.NewResponseID(),
		Object:    "response",
		CreatedAt: time.Now().Unix(),
		Status:    api.ResponseStatusInProgress,
		Model:     model,
		Output:    []api.Item{},
		Metadata:  map[string]any{},
	}
	echo(&resp, req)
	return resp
}

// echo copies the request parameters a response reports back.
func echo(resp *api.Response, req *api.CreateResponseRequest) {
	if req.Instructions != "" {
		instructions := req.Instructions
		resp.Instructions = &instructions
	}
	if req.PreviousResponseID != "" {
		prev := req.PreviousResponseID
		resp.PreviousResponseID = &prev
	}

	resp.Tools = api.NormalizeTools(req.Tools)
	if resp.Tools == nil {
		resp.Tools = []api.Tool{}
	}
	resp.ToolChoice = "auto"
	if choice, ok := api.NormalizeToolChoice(req.ToolChoice); ok {
		resp.ToolChoice = choice.ResponsesForm()
	}
	resp.ParallelToolCalls = req.ParallelToolCalls == nil || *req.ParallelToolCalls

	resp.Temperature = req.Temperature
	resp.TopP = req.TopP
	resp.MaxOutputTokens = req.MaxOutputTokens
	resp.Reasoning = req.Reasoning
	resp.Text = req.Text

	if len(req.Metadata) > 0 {
		resp.Metadata = req.Metadata
	}
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
}

// replay converts a complete response into the events a stream of the
// same content would have produced. It serves streaming callers when the
// backend answered in one piece.
func replay(resp *api.Response) <-chan provider.Event {
	var events []provider.Event
	calls := 0
	for _, item := range resp.Output {
		switch item.Type {
		case api.ItemTypeReasoning:
			if text := item.Reasoning.Text(); text != "" {
				events = append(events, provider.Event{Kind: provider.EventReasoningDelta, Delta: text})
			}
		case api.ItemTypeMessage:
			if text := item.Message.Text(); text != "" {
				events = append(events, provider.Event{Kind: provider.EventTextDelta, Delta: text})
			}
		case api.ItemTypeFunctionCall:
			if item.FunctionCall == nil {
				continue
			}
			events = append(events, provider.Event{
				Kind:   provider.EventToolCallDelta,
				Index:  calls,
				CallID: item.FunctionCall.CallID,
				Name:   item.FunctionCall.Name,
				Delta:  item.FunctionCall.Arguments,
			})
			calls++
		}
	}
	if resp.Usage != nil {
		usage := *resp.Usage
		events = append(events, provider.Event{Kind: provider.EventUsage, Usage: &usage})
	}
	events = append(events, provider.Event{Kind: provider.EventDone, Status: resp.Status, Model: resp.Model})

	ch := make(chan provider.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}
