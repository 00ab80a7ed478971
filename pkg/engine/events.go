package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/provider"
)

// segment is the open text or reasoning item. At most one is open at a time.
type segment struct {
	itemType    api.ItemType
	itemID      string
	outputIndex int
	buf         strings.Builder
}

// toolCall is a function call item being assembled from argument fragments.
type toolCall struct {
	itemID      string
	callID      string
	name        string
	outputIndex int
	args        strings.Builder
}

// translator turns normalized backend events into the canonical stream
// event sequence. It holds the running sequence number and the item state
// of one response; it is not safe for concurrent use.
type translator struct {
	base api.Response

	seq       int
	nextIndex int

	open   *segment
	calls  map[int]*toolCall
	closed map[int]api.Item

	usage  api.Usage
	model  string
	status api.ResponseStatus
}

func newTranslator(base api.Response) *translator {
	return &translator{
		base:   base,
		calls:  make(map[int]*toolCall),
		closed: make(map[int]api.Item),
	}
}

// event stamps ev with the next sequence number.
func (t *translator) event(ev api.StreamEvent) api.StreamEvent {
	ev.SequenceNumber = t.seq
	t.seq++
	return ev
}

// start emits response.created and response.in_progress.
func (t *translator) start() []api.StreamEvent {
	return []api.StreamEvent{
		t.event(api.StreamEvent{Type: api.EventResponseCreated, Response: t.snapshot(api.ResponseStatusInProgress)}),
		t.event(api.StreamEvent{Type: api.EventResponseInProgress, Response: t.snapshot(api.ResponseStatusInProgress)}),
	}
}

// handle maps one backend event. Done and Error only update state; the
// caller ends the stream with finish or fail.
func (t *translator) handle(ev provider.Event) []api.StreamEvent {
	if ev.Model != "" {
		t.model = ev.Model
	}
	if ev.Usage != nil {
		t.usage.Merge(*ev.Usage)
	}

	switch ev.Kind {
	case provider.EventTextDelta:
		if ev.Delta == "" {
			return nil
		}
		return t.appendSegment(api.ItemTypeMessage, ev.Delta)
	case provider.EventReasoningDelta:
		if ev.Delta == "" {
			return nil
		}
		return t.appendSegment(api.ItemTypeReasoning, ev.Delta)
	case provider.EventToolCallDelta:
		return t.toolCallDelta(ev)
	case provider.EventHeartbeat:
		return t.heartbeat()
	case provider.EventDone:
		if ev.Status != "" {
			t.status = ev.Status
		}
	}
	return nil
}

// appendSegment appends delta to the open segment of the given type,
// closing a segment of the other type and opening a new one as needed.
func (t *translator) appendSegment(itemType api.ItemType, delta string) []api.StreamEvent {
	var events []api.StreamEvent
	if t.open != nil && t.open.itemType != itemType {
		events = append(events, t.closeSegment()...)
	}
	if t.open == nil {
		events = append(events, t.openSegment(itemType)...)
	}

	s := t.open
	s.buf.WriteString(delta)
	typ := api.EventOutputTextDelta
	if itemType == api.ItemTypeReasoning {
		typ = api.EventReasoningTextDelta
	}
	return append(events, t.event(api.StreamEvent{
		Type:        typ,
		ItemID:      s.itemID,
		OutputIndex: s.outputIndex,
		Delta:       delta,
	}))
}

func (t *translator) openSegment(itemType api.ItemType) []api.StreamEvent {
	s := &segment{itemType: itemType, outputIndex: t.nextIndex}
	t.nextIndex++
	t.open = s

	item := api.Item{Type: itemType, Status: api.ItemStatusInProgress}
	if itemType == api.ItemTypeReasoning {
		s.itemID = api.NewReasoningID()
		item.ID = s.itemID
		item.Reasoning = &api.ReasoningData{Summary: []api.SummaryPart{}}
		return []api.StreamEvent{
			t.event(api.StreamEvent{Type: api.EventOutputItemAdded, OutputIndex: s.outputIndex, Item: &item}),
		}
	}

	s.itemID = api.NewMessageID()
	item.ID = s.itemID
	item.Message = &api.MessageData{Role: api.RoleAssistant, Output: []api.OutputContentPart{}}
	return []api.StreamEvent{
		t.event(api.StreamEvent{Type: api.EventOutputItemAdded, OutputIndex: s.outputIndex, Item: &item}),
		t.event(api.StreamEvent{
			Type:        api.EventContentPartAdded,
			ItemID:      s.itemID,
			OutputIndex: s.outputIndex,
			Part:        &api.OutputContentPart{Type: api.PartOutputText},
		}),
	}
}

// closeSegment emits the done events of the open segment.
func (t *translator) closeSegment() []api.StreamEvent {
	s := t.open
	if s == nil {
		return nil
	}
	t.open = nil
	text := s.buf.String()

	if s.itemType == api.ItemTypeReasoning {
		item := api.Item{
			ID:        s.itemID,
			Type:      api.ItemTypeReasoning,
			Status:    api.ItemStatusCompleted,
			Reasoning: api.NewReasoningData(text),
		}
		t.closed[s.outputIndex] = item
		return []api.StreamEvent{
			t.event(api.StreamEvent{Type: api.EventReasoningTextDone, ItemID: s.itemID, OutputIndex: s.outputIndex, Text: text}),
			t.event(api.StreamEvent{Type: api.EventOutputItemDone, OutputIndex: s.outputIndex, Item: &item}),
		}
	}

	part := api.OutputContentPart{Type: api.PartOutputText, Text: text}
	item := api.Item{
		ID:      s.itemID,
		Type:    api.ItemTypeMessage,
		Status:  api.ItemStatusCompleted,
		Message: &api.MessageData{Role: api.RoleAssistant, Output: []api.OutputContentPart{part}},
	}
	t.closed[s.outputIndex] = item
	return []api.StreamEvent{
		t.event(api.StreamEvent{Type: api.EventOutputTextDone, ItemID: s.itemID, OutputIndex: s.outputIndex, Text: text}),
		t.event(api.StreamEvent{Type: api.EventContentPartDone, ItemID: s.itemID, OutputIndex: s.outputIndex, Part: &part}),
		t.event(api.StreamEvent{Type: api.EventOutputItemDone, OutputIndex: s.outputIndex, Item: &item}),
	}
}

// toolCallDelta opens a function call item on the first delta for an
// unseen backend index and appends argument fragments afterwards.
func (t *translator) toolCallDelta(ev provider.Event) []api.StreamEvent {
	var events []api.StreamEvent

	tc, ok := t.calls[ev.Index]
	if !ok {
		tc = &toolCall{
			itemID:      api.NewFunctionCallID(),
			callID:      ev.CallID,
			name:        ev.Name,
			outputIndex: t.nextIndex,
		}
		t.nextIndex++
		t.calls[ev.Index] = tc
		events = append(events, t.event(api.StreamEvent{
			Type:        api.EventOutputItemAdded,
			OutputIndex: tc.outputIndex,
			Item: &api.Item{
				ID:           tc.itemID,
				Type:         api.ItemTypeFunctionCall,
				Status:       api.ItemStatusInProgress,
				FunctionCall: &api.FunctionCallData{Name: tc.name, CallID: tc.callID},
			},
		}))
	} else {
		if tc.name == "" && ev.Name != "" {
			tc.name = ev.Name
		}
		if tc.callID == "" && ev.CallID != "" {
			tc.callID = ev.CallID
		}
	}

	if ev.Delta != "" {
		tc.args.WriteString(ev.Delta)
		events = append(events, t.event(api.StreamEvent{
			Type:        api.EventFunctionCallArgsDelta,
			ItemID:      tc.itemID,
			OutputIndex: tc.outputIndex,
			Delta:       ev.Delta,
		}))
	}
	return events
}

// heartbeat emits an empty text delta so consumers observe liveness, but
// only while nothing is open.
func (t *translator) heartbeat() []api.StreamEvent {
	if t.open != nil || len(t.calls) > 0 {
		return nil
	}
	return []api.StreamEvent{t.event(api.StreamEvent{Type: api.EventOutputTextDelta})}
}

// closeCalls emits the done events of every tool call in ascending
// output index order.
func (t *translator) closeCalls() []api.StreamEvent {
	calls := make([]*toolCall, 0, len(t.calls))
	for _, tc := range t.calls {
		calls = append(calls, tc)
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].outputIndex < calls[j].outputIndex })

	var events []api.StreamEvent
	for _, tc := range calls {
		name := tc.name
		if name == "" {
			name = "unknown_function"
		}
		callID := tc.callID
		if callID == "" {
			callID = api.NewCallID()
		}
		args := tc.args.String()
		if args == "" {
			args = "{}"
		}
		item := api.Item{
			ID:           tc.itemID,
			Type:         api.ItemTypeFunctionCall,
			Status:       api.ItemStatusCompleted,
			FunctionCall: &api.FunctionCallData{Name: name, CallID: callID, Arguments: args},
		}
		t.closed[tc.outputIndex] = item
		events = append(events,
			t.event(api.StreamEvent{
				Type:        api.EventFunctionCallArgsDone,
				ItemID:      tc.itemID,
				OutputIndex: tc.outputIndex,
				Name:        name,
				Arguments:   args,
			}),
			t.event(api.StreamEvent{Type: api.EventOutputItemDone, OutputIndex: tc.outputIndex, Item: &item}),
		)
	}
	t.calls = make(map[int]*toolCall)
	return events
}

// finish closes the open segment, then all tool calls, and emits
// response.completed with the assembled response as the last event.
func (t *translator) finish() []api.StreamEvent {
	events := t.closeSegment()
	events = append(events, t.closeCalls()...)

	status := t.status
	if status == "" {
		status = api.ResponseStatusCompleted
	}
	resp := t.snapshot(status)
	now := time.Now().Unix()
	resp.CompletedAt = &now
	return append(events, t.event(api.StreamEvent{Type: api.EventResponseCompleted, Response: resp}))
}

// fail emits response.failed. Open items stay open.
func (t *translator) fail(apiErr *api.APIError) []api.StreamEvent {
	resp := t.snapshot(api.ResponseStatusFailed)
	resp.Error = apiErr
	return []api.StreamEvent{t.event(api.StreamEvent{Type: api.EventResponseFailed, Response: resp})}
}

// cancel emits response.cancelled.
func (t *translator) cancel() []api.StreamEvent {
	return []api.StreamEvent{t.event(api.StreamEvent{Type: api.EventResponseCancelled, Response: t.snapshot(api.ResponseStatusCancelled)})}
}

// snapshot returns the response as assembled so far.
func (t *translator) snapshot(status api.ResponseStatus) *api.Response {
	resp := t.base
	resp.Status = status
	if t.model != "" {
		resp.Model = t.model
	}

	indices := make([]int, 0, len(t.closed))
	for i := range t.closed {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	resp.Output = make([]api.Item, 0, len(indices))
	for _, i := range indices {
		resp.Output = append(resp.Output, t.closed[i])
	}
	resp.OutputText = api.DeriveOutputText(resp.Output)

	usage := t.usage
	resp.Usage = &usage
	return &resp
}
