package gemini

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

// parseStream reads streamGenerateContent SSE chunks. Gemini sends each
// function call whole, so every call gets a fresh index with its complete
// arguments. Usage metadata is cumulative; the last chunk wins. The stream
// ends at EOF.
func parseStream(ctx context.Context, body io.Reader, out *provider.Emitter) error {
	reader := provider.NewSSEReader(body)
	status := api.ResponseStatusCompleted
	model := ""
	nextIndex := 0

	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			out.Send(provider.Event{Kind: provider.EventDone, Status: status, Model: model})
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		debug.Raw("streaming", "gemini chunk: "+frame.Data)

		var chunk generateResponse
		if err := json.Unmarshal([]byte(frame.Data), &chunk); err != nil {
			slog.Warn("skipping malformed SSE event",
				"error", err.Error(),
				"data", debug.Truncate(frame.Data, 200),
			)
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("backend stream error: %s", chunk.Error.Message)
		}
		if len(chunk.Candidates) == 0 && chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
			return fmt.Errorf("prompt blocked: %s", chunk.PromptFeedback.BlockReason)
		}
		if chunk.ModelVersion != "" {
			model = chunk.ModelVersion
		}

		e := extract(&chunk)
		if e.status != "" {
			status = e.status
		}

		var events []provider.Event
		if e.reasoning != "" {
			events = append(events, provider.Event{Kind: provider.EventReasoningDelta, Delta: e.reasoning})
		}
		if e.text != "" {
			events = append(events, provider.Event{Kind: provider.EventTextDelta, Delta: e.text})
		}
		for _, tc := range e.calls {
			events = append(events, provider.Event{
				Kind:   provider.EventToolCallDelta,
				Index:  nextIndex,
				CallID: tc.CallID,
				Name:   tc.Name,
				Delta:  tc.Arguments,
			})
			nextIndex++
		}
		if chunk.UsageMetadata != nil {
			u := translateUsage(chunk.UsageMetadata)
			events = append(events, provider.Event{Kind: provider.EventUsage, Usage: &u})
		}
		if len(events) == 0 {
			events = append(events, provider.Event{Kind: provider.EventHeartbeat})
		}

		for _, ev := range events {
			ev.Model = model
			if !out.Send(ev) {
				return nil
			}
		}
	}
}
