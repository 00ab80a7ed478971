package anthropic

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

// errStreamTruncated reports a stream that ended without message_stop.
var errStreamTruncated = errors.New("stream ended before message_stop")

// parseStream reads Messages API SSE events and emits provider events.
// Tool calls are keyed by the content block index.
func parseStream(ctx context.Context, body io.Reader, out *provider.Emitter) error {
	reader := provider.NewSSEReader(body)
	status := api.ResponseStatusCompleted
	model := ""

	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return errStreamTruncated
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		debug.Raw("streaming", "anthropic event: "+frame.Data)

		var ev streamEvent
		if err := json.Unmarshal([]byte(frame.Data), &ev); err != nil {
			slog.Warn("skipping malformed SSE event",
				"error", err.Error(),
				"data", debug.Truncate(frame.Data, 200),
			)
			continue
		}
		if ev.Type == "" {
			ev.Type = frame.Event
		}

		var events []provider.Event
		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				model = ev.Message.Model
				if ev.Message.Usage != nil {
					u := translateUsage(ev.Message.Usage)
					events = append(events, provider.Event{Kind: provider.EventUsage, Usage: &u})
				}
			}

		case "content_block_start":
			if b := ev.ContentBlock; b != nil {
				switch b.Type {
				case "tool_use":
					events = append(events, provider.Event{
						Kind:   provider.EventToolCallDelta,
						Index:  ev.Index,
						CallID: b.ID,
						Name:   b.Name,
					})
				case "text":
					if b.Text != "" {
						events = append(events, provider.Event{Kind: provider.EventTextDelta, Delta: b.Text})
					}
				case "thinking":
					if b.Thinking != "" {
						events = append(events, provider.Event{Kind: provider.EventReasoningDelta, Delta: b.Thinking})
					}
				}
			}

		case "content_block_delta":
			if d := ev.Delta; d != nil {
				switch d.Type {
				case "text_delta":
					events = append(events, provider.Event{Kind: provider.EventTextDelta, Delta: d.Text})
				case "thinking_delta":
					events = append(events, provider.Event{Kind: provider.EventReasoningDelta, Delta: d.Thinking})
				case "input_json_delta":
					events = append(events, provider.Event{Kind: provider.EventToolCallDelta, Index: ev.Index, Delta: d.PartialJSON})
				}
			}

		case "message_delta":
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				status = mapStopReason(ev.Delta.StopReason)
			}
			if ev.Usage != nil {
				u := api.Usage{OutputTokens: ev.Usage.OutputTokens}
				events = append(events, provider.Event{Kind: provider.EventUsage, Usage: &u})
			}

		case "ping":
			events = append(events, provider.Event{Kind: provider.EventHeartbeat})

		case "message_stop":
			out.Send(provider.Event{Kind: provider.EventDone, Status: status, Model: model})
			return nil

		case "error":
			msg := "unknown error"
			if ev.Error != nil && ev.Error.Message != "" {
				msg = ev.Error.Message
			}
			return fmt.Errorf("backend stream error: %s", msg)
		}

		for _, e := range events {
			e.Model = model
			if !out.Send(e) {
				return nil
			}
		}
	}
}
