package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/provider"
)

// parseStream reads Responses API SSE events and maps them to provider
// events. The backend's own lifecycle events are dropped; the engine
// synthesizes its own. Tool calls are keyed by the backend's output index.
func parseStream(ctx context.Context, body io.Reader, out *provider.Emitter) error {
	reader := provider.NewSSEReader(body)
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			out.Send(provider.Event{Kind: provider.EventDone})
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		debug.Raw("streaming", "responses event: "+frame.Data)

		if frame.Data == "[DONE]" {
			out.Send(provider.Event{Kind: provider.EventDone})
			return nil
		}

		var d sseEventData
		if err := json.Unmarshal([]byte(frame.Data), &d); err != nil {
			slog.Warn("skipping malformed SSE event",
				"error", err.Error(),
				"data", debug.Truncate(frame.Data, 200),
			)
			continue
		}
		eventType := d.Type
		if eventType == "" {
			eventType = frame.Event
		}

		done, err := handleEvent(eventType, &d, out)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// handleEvent emits the provider events for one backend event. It reports
// whether the stream has ended.
func handleEvent(eventType string, d *sseEventData, out *provider.Emitter) (bool, error) {
	switch eventType {
	case eventTextDelta, eventRefusalDelta:
		return !out.Send(provider.Event{Kind: provider.EventTextDelta, Delta: d.Delta}), nil

	case eventReasoningDelta, eventReasoningSumDelta:
		return !out.Send(provider.Event{Kind: provider.EventReasoningDelta, Delta: d.Delta}), nil

	case eventOutputItemAdded:
		if d.Item == nil || d.Item.Type != "function_call" {
			return false, nil
		}
		return !out.Send(provider.Event{
			Kind:   provider.EventToolCallDelta,
			Index:  d.OutputIndex,
			CallID: d.Item.CallID,
			Name:   d.Item.Name,
			Delta:  d.Item.Arguments,
		}), nil

	case eventFuncCallArgsDelta:
		return !out.Send(provider.Event{
			Kind:  provider.EventToolCallDelta,
			Index: d.OutputIndex,
			Delta: d.Delta,
		}), nil

	case eventResponseCompleted, eventResponseIncomplete:
		status := api.ResponseStatusCompleted
		model := ""
		if d.Response != nil {
			status = mapResponseStatus(d.Response.Status)
			model = d.Response.Model
			if d.Response.Usage != nil {
				usage := *d.Response.Usage
				if !out.Send(provider.Event{Kind: provider.EventUsage, Usage: &usage, Model: model}) {
					return true, nil
				}
			}
		}
		out.Send(provider.Event{Kind: provider.EventDone, Status: status, Model: model})
		return true, nil

	case eventResponseFailed:
		msg := "backend response failed"
		if d.Response != nil && d.Response.Error != nil && d.Response.Error.Message != "" {
			msg = d.Response.Error.Message
		}
		return true, fmt.Errorf("backend stream error: %s", msg)

	case eventError:
		msg := d.Message
		if msg == "" {
			msg = "unknown error"
		}
		return true, fmt.Errorf("backend stream error: %s", msg)

	default:
		// Lifecycle and done events carry nothing the engine needs.
		return false, nil
	}
}
