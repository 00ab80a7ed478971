package provider

import "github.com/rhuss/weiche/pkg/api"

// EventKind classifies a streaming event from a backend.
type EventKind int

const (
	EventTextDelta      EventKind = iota // Incremental assistant text
	EventReasoningDelta                  // Incremental reasoning/thinking text
	EventToolCallDelta                   // Tool call opened or argument fragment
	EventUsage                           // Usage counters only
	EventHeartbeat                       // Chunk with nothing usable
	EventDone                            // Backend signalled the end of the stream
	EventError                           // Stream failed
)

var eventKindNames = [...]string{"text_delta", "reasoning_delta", "tool_call_delta", "usage", "heartbeat", "done", "error"}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// Event is a single normalized streaming event from a backend.
type Event struct {
	Kind EventKind

	// Delta contains incremental text, reasoning or argument data.
	Delta string

	// Index identifies the tool call within the response, as numbered by
	// the backend. CallID and Name are set when the backend supplies them,
	// usually on the first delta for an index.
	Index  int
	CallID string
	Name   string

	// Usage is set on EventUsage. Zero counters mean "not reported".
	Usage *api.Usage

	// Model is the backend-reported model, set whenever the backend reports one.
	Model string

	// Status is set on EventDone when the backend reports something other
	// than a normal completion (e.g. incomplete).
	Status api.ResponseStatus

	// Err is set on EventError.
	Err error
}
