package api

import "encoding/json"

// StreamEventType identifies the type of a streaming event.
type StreamEventType string

// Delta events are emitted during streaming to convey incremental content.
const (
	EventOutputItemAdded       StreamEventType = "response.output_item.added"
	EventContentPartAdded      StreamEventType = "response.content_part.added"
	EventOutputTextDelta       StreamEventType = "response.output_text.delta"
	EventOutputTextDone        StreamEventType = "response.output_text.done"
	EventReasoningTextDelta    StreamEventType = "response.reasoning_text.delta"
	EventReasoningTextDone     StreamEventType = "response.reasoning_text.done"
	EventFunctionCallArgsDelta StreamEventType = "response.function_call_arguments.delta"
	EventFunctionCallArgsDone  StreamEventType = "response.function_call_arguments.done"
	EventContentPartDone       StreamEventType = "response.content_part.done"
	EventOutputItemDone        StreamEventType = "response.output_item.done"
)

// State machine events track the lifecycle of a response.
const (
	EventResponseCreated    StreamEventType = "response.created"
	EventResponseInProgress StreamEventType = "response.in_progress"
	EventResponseCompleted  StreamEventType = "response.completed"
	EventResponseFailed     StreamEventType = "response.failed"
	EventResponseCancelled  StreamEventType = "response.cancelled"
)

// IsTerminal reports whether the event ends a response stream.
func (t StreamEventType) IsTerminal() bool {
	switch t {
	case EventResponseCompleted, EventResponseFailed, EventResponseCancelled:
		return true
	}
	return false
}

// StreamEvent represents a single server-sent event in a streaming response.
// Which fields are populated depends on Type.
type StreamEvent struct {
	Type           StreamEventType
	SequenceNumber int
	Response       *Response
	Item           *Item
	Part           *OutputContentPart
	Delta          string
	Text           string
	Arguments      string
	Name           string
	ItemID         string
	OutputIndex    int
	ContentIndex   int
}

// MarshalJSON writes only the fields that belong to the event's type.
// output_index is always present on item-scoped events, including index 0.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":            e.Type,
		"sequence_number": e.SequenceNumber,
	}
	switch e.Type {
	case EventResponseCreated, EventResponseInProgress, EventResponseCompleted,
		EventResponseFailed, EventResponseCancelled:
		m["response"] = e.Response
		return json.Marshal(m)
	}

	m["output_index"] = e.OutputIndex
	switch e.Type {
	case EventOutputItemAdded, EventOutputItemDone:
		m["item"] = e.Item
	case EventContentPartAdded, EventContentPartDone:
		m["item_id"] = e.ItemID
		m["content_index"] = e.ContentIndex
		m["part"] = e.Part
	case EventOutputTextDelta, EventReasoningTextDelta:
		m["item_id"] = e.ItemID
		m["content_index"] = e.ContentIndex
		m["delta"] = e.Delta
	case EventOutputTextDone, EventReasoningTextDone:
		m["item_id"] = e.ItemID
		m["content_index"] = e.ContentIndex
		m["text"] = e.Text
	case EventFunctionCallArgsDelta:
		m["item_id"] = e.ItemID
		m["delta"] = e.Delta
	case EventFunctionCallArgsDone:
		m["item_id"] = e.ItemID
		m["name"] = e.Name
		m["arguments"] = e.Arguments
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an event produced by MarshalJSON. It is used by
// clients and tests that read the gateway's own stream.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	var w struct {
		Type           StreamEventType    `json:"type"`
		SequenceNumber int                `json:"sequence_number"`
		Response       *Response          `json:"response"`
		Item           *Item              `json:"item"`
		Part           *OutputContentPart `json:"part"`
		Delta          string             `json:"delta"`
		Text           string             `json:"text"`
		Arguments      string             `json:"arguments"`
		Name           string             `json:"name"`
		ItemID         string             `json:"item_id"`
		OutputIndex    int                `json:"output_index"`
		ContentIndex   int                `json:"content_index"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = StreamEvent(w)
	return nil
}
