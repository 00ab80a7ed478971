package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/provider"
)

// streamParser holds per-stream state for translating Chat Completions
// chunks into provider events.
type streamParser struct {
	out    *provider.Emitter
	status api.ResponseStatus

	reasoningLen    int
	reasoningTokens int
}

// ParseStream reads Chat Completions SSE chunks from body and emits
// provider events. SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped. A body that ends without the
// [DONE] sentinel is treated as complete.
func ParseStream(ctx context.Context, body io.Reader, out *provider.Emitter) error {
	p := &streamParser{out: out}
	reader := provider.NewSSEReader(body)

	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			p.finish()
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		debug.Raw("streaming", "chat chunk: "+frame.Data)

		if frame.Data == "[DONE]" {
			p.finish()
			return nil
		}

		if gjson.Get(frame.Data, "error").Exists() {
			return fmt.Errorf("backend stream error: %s", provider.ExtractErrorMessage([]byte(frame.Data)))
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(frame.Data), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", debug.Truncate(frame.Data, 200),
			)
			continue
		}

		if !p.translate(&chunk) {
			return nil
		}
	}
}

// translate emits the events for one chunk. It returns false when the
// consumer went away.
func (p *streamParser) translate(chunk *ChatCompletionChunk) bool {
	emitted := false
	send := func(ev provider.Event) bool {
		emitted = true
		ev.Model = chunk.Model
		return p.out.Send(ev)
	}

	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		delta := choice.Delta

		if r := firstString(delta.ReasoningContent, delta.Reasoning); r != "" {
			p.reasoningLen += len(r)
			if !send(provider.Event{Kind: provider.EventReasoningDelta, Delta: r}) {
				return false
			}
		}

		if text := firstString(delta.Content, delta.Text); text != "" {
			if !send(provider.Event{Kind: provider.EventTextDelta, Delta: text}) {
				return false
			}
		}

		for pos, tc := range delta.ToolCalls {
			index := pos
			if tc.Index != nil {
				index = *tc.Index
			}
			ev := provider.Event{
				Kind:   provider.EventToolCallDelta,
				Index:  index,
				CallID: tc.ID,
				Name:   tc.Function.Name,
				Delta:  tc.Function.Arguments,
			}
			if !send(ev) {
				return false
			}
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			p.status = MapFinishReason(*choice.FinishReason)
		}
	}

	if chunk.Usage != nil {
		usage := translateUsage(chunk.Usage)
		if usage.OutputTokensDetails.ReasoningTokens != 0 {
			p.reasoningTokens = usage.OutputTokensDetails.ReasoningTokens
		}
		if !send(provider.Event{Kind: provider.EventUsage, Usage: &usage}) {
			return false
		}
	}

	if !emitted {
		return send(provider.Event{Kind: provider.EventHeartbeat})
	}
	return true
}

// finish emits the reasoning token estimate when the backend reported
// none, then the terminal done event.
func (p *streamParser) finish() {
	if p.reasoningLen > 0 && p.reasoningTokens == 0 {
		est := max(1, (p.reasoningLen+3)/4)
		usage := api.Usage{OutputTokensDetails: api.OutputTokensDetails{ReasoningTokens: est}}
		if !p.out.Send(provider.Event{Kind: provider.EventUsage, Usage: &usage}) {
			return
		}
	}
	p.out.Send(provider.Event{Kind: provider.EventDone, Status: p.status})
}
