package provider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// StreamBuffer bounds the event channel between an adapter's reader
// goroutine and the engine. A slow caller therefore blocks the reader,
// which in turn stops reading the backend body.
const StreamBuffer = 16

// maxSSELine caps a single SSE line. Gemini and Responses backends can send
// large single-line chunks (e.g. a full response.completed snapshot).
const maxSSELine = 4 * 1024 * 1024

// Frame is one server-sent event: the optional "event:" name and the
// joined "data:" payload.
type Frame struct {
	Event string
	Data  string
}

// SSEReader is a pull-based reader of server-sent events.
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader creates an SSEReader over r.
func NewSSEReader(r io.Reader) *SSEReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxSSELine)
	return &SSEReader{scanner: s}
}

// Next returns the next frame that carries data. Comment lines and frames
// without data are skipped. It returns io.EOF at the end of the body.
func (r *SSEReader) Next() (Frame, error) {
	var (
		frame Frame
		data  []string
	)
	for r.scanner.Scan() {
		line := strings.TrimRight(r.scanner.Text(), "\r")

		if line == "" {
			if len(data) > 0 {
				frame.Data = strings.Join(data, "\n")
				return frame, nil
			}
			frame = Frame{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.Event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("SSE stream read error: %w", err)
	}
	if len(data) > 0 {
		frame.Data = strings.Join(data, "\n")
		return frame, nil
	}
	return Frame{}, io.EOF
}

// Emitter sends events from an adapter's reader goroutine. Every send
// honours ctx so a cancelled caller never leaves the goroutine blocked.
type Emitter struct {
	ctx context.Context
	ch  chan<- Event
}

// Send delivers ev and reports whether the consumer is still listening.
func (e *Emitter) Send(ev Event) bool {
	select {
	case e.ch <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// ParseFunc reads a backend body and emits normalized events. It returns
// nil at the natural end of the stream and an error when reading or
// decoding failed in a way that ends the stream.
type ParseFunc func(ctx context.Context, body io.Reader, out *Emitter) error

// StreamBody runs parse over body on a new goroutine and returns the
// bounded event channel. The goroutine closes body and the channel on
// exit. A parse error is delivered as a final EventError unless ctx was
// cancelled.
func StreamBody(ctx context.Context, body io.ReadCloser, parse ParseFunc) <-chan Event {
	ch := make(chan Event, StreamBuffer)
	go func() {
		defer close(ch)
		defer body.Close()

		out := &Emitter{ctx: ctx, ch: ch}
		if err := parse(ctx, body, out); err != nil && ctx.Err() == nil {
			out.Send(Event{Kind: EventError, Err: err})
		}
	}()
	return ch
}
