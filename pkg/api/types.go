package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Content types
// ---------------------------------------------------------------------------

// ContentPart represents a part of caller-supplied message content.
// The Type field indicates the kind of content: input_text, output_text
// (assistant history) or input_image.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// OutputContentPart represents a part of model output content.
// The Type field is output_text or refusal.
type OutputContentPart struct {
	Type        string       `json:"-"`
	Text        string       `json:"-"`
	Refusal     string       `json:"-"`
	Annotations []Annotation `json:"-"`
}

// Output content part types.
const (
	PartOutputText = "output_text"
	PartRefusal    = "refusal"
)

// MarshalJSON writes output_text parts with an annotations array that is
// never null, and refusal parts with their refusal text.
func (p OutputContentPart) MarshalJSON() ([]byte, error) {
	if p.Type == PartRefusal {
		return json.Marshal(struct {
			Type    string `json:"type"`
			Refusal string `json:"refusal"`
		}{p.Type, p.Refusal})
	}
	annotations := p.Annotations
	if annotations == nil {
		annotations = []Annotation{}
	}
	return json.Marshal(struct {
		Type        string       `json:"type"`
		Text        string       `json:"text"`
		Annotations []Annotation `json:"annotations"`
	}{p.Type, p.Text, annotations})
}

// UnmarshalJSON deserializes an OutputContentPart.
func (p *OutputContentPart) UnmarshalJSON(data []byte) error {
	var w struct {
		Type        string       `json:"type"`
		Text        string       `json:"text"`
		Refusal     string       `json:"refusal"`
		Annotations []Annotation `json:"annotations"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Type = w.Type
	p.Text = w.Text
	p.Refusal = w.Refusal
	if len(w.Annotations) > 0 {
		p.Annotations = w.Annotations
	}
	return nil
}

// Annotation represents an annotation on output text, such as a citation.
type Annotation struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	URL        string `json:"url,omitempty"`
	StartIndex int    `json:"start_index,omitempty"`
	EndIndex   int    `json:"end_index,omitempty"`
}

// SummaryPart is one segment of a reasoning item's summary.
type SummaryPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ---------------------------------------------------------------------------
// Item type-specific data structs
// ---------------------------------------------------------------------------

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleDeveloper MessageRole = "developer"
)

// ItemType represents the type of an item in a conversation.
type ItemType string

const (
	ItemTypeMessage            ItemType = "message"
	ItemTypeFunctionCall       ItemType = "function_call"
	ItemTypeFunctionCallOutput ItemType = "function_call_output"
	ItemTypeReasoning          ItemType = "reasoning"
)

// ItemStatus represents the processing status of an item.
type ItemStatus string

const (
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusIncomplete ItemStatus = "incomplete"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

// MessageData holds the data specific to a message item. Caller input
// uses Content, model output uses Output.
type MessageData struct {
	Role    MessageRole         `json:"role"`
	Content []ContentPart       `json:"content,omitempty"`
	Output  []OutputContentPart `json:"output,omitempty"`
}

// Text concatenates the text of all input and output parts.
func (m *MessageData) Text() string {
	if m == nil {
		return ""
	}
	var buf bytes.Buffer
	for _, p := range m.Content {
		buf.WriteString(p.Text)
	}
	for _, p := range m.Output {
		if p.Type == PartRefusal {
			buf.WriteString(p.Refusal)
			continue
		}
		buf.WriteString(p.Text)
	}
	return buf.String()
}

// FunctionCallData holds the data specific to a function call item.
// Arguments is raw JSON text exactly as produced by the model.
type FunctionCallData struct {
	Name      string `json:"name"`
	CallID    string `json:"call_id"`
	Arguments string `json:"arguments"`
}

// FunctionCallOutputData holds the data specific to a function call output item.
type FunctionCallOutputData struct {
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// ReasoningData holds the data specific to a reasoning item.
type ReasoningData struct {
	Summary          []SummaryPart `json:"summary"`
	EncryptedContent string        `json:"encrypted_content,omitempty"`
}

// Text joins the summary segments.
func (r *ReasoningData) Text() string {
	if r == nil {
		return ""
	}
	var buf bytes.Buffer
	for _, s := range r.Summary {
		buf.WriteString(s.Text)
	}
	return buf.String()
}

// NewReasoningData wraps accumulated reasoning text into a single summary segment.
func NewReasoningData(text string) *ReasoningData {
	return &ReasoningData{Summary: []SummaryPart{{Type: "summary_text", Text: text}}}
}

// ---------------------------------------------------------------------------
// Item struct
// ---------------------------------------------------------------------------

// Item is a single unit of conversation: a message, a function call,
// a function call output or a reasoning step. Exactly one of the typed
// data pointers matching Type is set.
type Item struct {
	ID     string     `json:"id"`
	Type   ItemType   `json:"type"`
	Status ItemStatus `json:"status"`

	Message            *MessageData            `json:"-"`
	FunctionCall       *FunctionCallData       `json:"-"`
	FunctionCallOutput *FunctionCallOutputData `json:"-"`
	Reasoning          *ReasoningData          `json:"-"`
}

// itemWireBase contains fields common to all item types.
type itemWireBase struct {
	ID     string     `json:"id,omitempty"`
	Type   ItemType   `json:"type"`
	Status ItemStatus `json:"status,omitempty"`
}

// MarshalJSON serializes an Item to the flat Responses wire format:
// type-specific fields are at the top level, not nested in a wrapper.
func (item Item) MarshalJSON() ([]byte, error) {
	base := itemWireBase{ID: item.ID, Type: item.Type, Status: item.Status}

	switch item.Type {
	case ItemTypeMessage:
		w := struct {
			itemWireBase
			Role    MessageRole `json:"role"`
			Content []any       `json:"content"`
		}{itemWireBase: base, Content: []any{}}
		if item.Message != nil {
			w.Role = item.Message.Role
			for _, part := range item.Message.Output {
				w.Content = append(w.Content, part)
			}
			for _, part := range item.Message.Content {
				w.Content = append(w.Content, part)
			}
		}
		return json.Marshal(w)

	case ItemTypeFunctionCall:
		w := struct {
			itemWireBase
			CallID    string `json:"call_id"`
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		}{itemWireBase: base}
		if item.FunctionCall != nil {
			w.CallID = item.FunctionCall.CallID
			w.Name = item.FunctionCall.Name
			w.Arguments = item.FunctionCall.Arguments
		}
		return json.Marshal(w)

	case ItemTypeFunctionCallOutput:
		w := struct {
			itemWireBase
			CallID string `json:"call_id"`
			Output string `json:"output"`
		}{itemWireBase: base}
		if item.FunctionCallOutput != nil {
			w.CallID = item.FunctionCallOutput.CallID
			w.Output = item.FunctionCallOutput.Output
		}
		return json.Marshal(w)

	case ItemTypeReasoning:
		w := struct {
			itemWireBase
			Summary          []SummaryPart `json:"summary"`
			EncryptedContent string        `json:"encrypted_content,omitempty"`
		}{itemWireBase: base, Summary: []SummaryPart{}}
		if item.Reasoning != nil {
			if item.Reasoning.Summary != nil {
				w.Summary = item.Reasoning.Summary
			}
			w.EncryptedContent = item.Reasoning.EncryptedContent
		}
		return json.Marshal(w)

	default:
		return nil, fmt.Errorf("unsupported item type %q", item.Type)
	}
}

// UnmarshalJSON deserializes an Item from the flat wire format. A missing
// type with a role present is treated as a message, and message content
// may be a plain string or an array of parts.
func (item *Item) UnmarshalJSON(data []byte) error {
	var base struct {
		ID        string          `json:"id"`
		Type      ItemType        `json:"type"`
		Status    ItemStatus      `json:"status"`
		Role      MessageRole     `json:"role"`
		Content   json.RawMessage `json:"content"`
		CallID    string          `json:"call_id"`
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
		Output    json.RawMessage `json:"output"`
		Summary   json.RawMessage `json:"summary"`
		Encrypted string          `json:"encrypted_content"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}

	*item = Item{ID: base.ID, Type: base.Type, Status: base.Status}
	if item.Type == "" && base.Role != "" {
		item.Type = ItemTypeMessage
	}

	switch item.Type {
	case ItemTypeMessage:
		msg, err := decodeMessageContent(base.Role, base.Content)
		if err != nil {
			return err
		}
		item.Message = msg

	case ItemTypeFunctionCall:
		item.FunctionCall = &FunctionCallData{
			Name:      base.Name,
			CallID:    base.CallID,
			Arguments: rawText(base.Arguments),
		}

	case ItemTypeFunctionCallOutput:
		item.FunctionCallOutput = &FunctionCallOutputData{
			CallID: base.CallID,
			Output: rawText(base.Output),
		}

	case ItemTypeReasoning:
		r := &ReasoningData{EncryptedContent: base.Encrypted}
		if len(base.Summary) > 0 && !isJSONNull(base.Summary) {
			var text string
			if err := json.Unmarshal(base.Summary, &text); err == nil {
				r.Summary = []SummaryPart{{Type: "summary_text", Text: text}}
			} else if err := json.Unmarshal(base.Summary, &r.Summary); err != nil {
				return fmt.Errorf("reasoning summary: %w", err)
			}
		}
		item.Reasoning = r

	case "":
		return fmt.Errorf("item has neither type nor role")

	default:
		return fmt.Errorf("unsupported item type %q", item.Type)
	}
	return nil
}

// decodeMessageContent accepts a plain string or a list of typed parts.
// Assistant text parts become output parts, everything else input parts.
func decodeMessageContent(role MessageRole, raw json.RawMessage) (*MessageData, error) {
	if role == "" {
		role = RoleUser
	}
	msg := &MessageData{Role: role}
	if len(raw) == 0 || isJSONNull(raw) {
		return msg, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if role == RoleAssistant {
			msg.Output = []OutputContentPart{{Type: PartOutputText, Text: s}}
		} else {
			msg.Content = []ContentPart{{Type: "input_text", Text: s}}
		}
		return msg, nil
	}

	var parts []struct {
		Type     string          `json:"type"`
		Text     string          `json:"text"`
		Refusal  string          `json:"refusal"`
		ImageURL json.RawMessage `json:"image_url"`
		Detail   string          `json:"detail"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("message content must be a string or an array of parts: %w", err)
	}
	for _, p := range parts {
		switch {
		case role == RoleAssistant && (p.Type == PartOutputText || p.Type == "text"):
			msg.Output = append(msg.Output, OutputContentPart{Type: PartOutputText, Text: p.Text})
		case role == RoleAssistant && p.Type == PartRefusal:
			msg.Output = append(msg.Output, OutputContentPart{Type: PartRefusal, Refusal: p.Refusal})
		case p.Type == "input_image" || p.Type == "image_url":
			msg.Content = append(msg.Content, ContentPart{Type: "input_image", ImageURL: imageURL(p.ImageURL), Detail: p.Detail})
		default:
			msg.Content = append(msg.Content, ContentPart{Type: "input_text", Text: p.Text})
		}
	}
	return msg, nil
}

// imageURL accepts both the Responses string form and the Chat Completions
// {"url": ...} object form.
func imageURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(raw, &obj)
	return obj.URL
}

// rawText returns the string value of a JSON string, or the raw JSON text
// for any other value. Function arguments and outputs are sometimes sent
// as objects instead of strings.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || isJSONNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// ---------------------------------------------------------------------------
// Tools
// ---------------------------------------------------------------------------

// ToolChoice represents a tool selection strategy. It is either a simple
// string ("auto", "required", "none") or a named function selection in
// the Responses form {"type":"function","name":...} or the Chat form
// {"type":"function","function":{"name":...}}.
type ToolChoice struct {
	String   string              `json:"-"`
	Function *ToolChoiceFunction `json:"-"`
}

// ToolChoiceFunction specifies a particular function to call by name.
type ToolChoiceFunction struct {
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	Function *FunctionSelect `json:"function,omitempty"`
}

// FunctionSelect is the nested Chat Completions function selector.
type FunctionSelect struct {
	Name string `json:"name"`
}

var (
	// ToolChoiceAuto lets the model decide whether to use a tool.
	ToolChoiceAuto = ToolChoice{String: "auto"}
	// ToolChoiceRequired forces the model to use a tool.
	ToolChoiceRequired = ToolChoice{String: "required"}
	// ToolChoiceNone prevents the model from using any tool.
	ToolChoiceNone = ToolChoice{String: "none"}
)

// NewToolChoiceFunction creates a ToolChoice that selects a specific function by name.
func NewToolChoiceFunction(name string) ToolChoice {
	return ToolChoice{Function: &ToolChoiceFunction{Type: "function", Name: name}}
}

// MarshalJSON serializes ToolChoice as either a JSON string or a JSON object.
func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	if tc.String != "" {
		return json.Marshal(tc.String)
	}
	if tc.Function != nil {
		return json.Marshal(tc.Function)
	}
	return nil, fmt.Errorf("ToolChoice has neither string value nor function")
}

// UnmarshalJSON deserializes ToolChoice from either a JSON string or a JSON object.
func (tc *ToolChoice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		tc.String = s
		tc.Function = nil
		return nil
	}

	var f ToolChoiceFunction
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("tool_choice must be a string or object: %w", err)
	}
	tc.String = ""
	tc.Function = &f
	return nil
}

// ToolDefinition is a tool as declared by the caller. Both the flat
// Responses shape and the nested Chat Completions shape are accepted;
// NormalizeTools turns either into a Tool.
type ToolDefinition struct {
	Type        string              `json:"type"`
	Name        string              `json:"name,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  json.RawMessage     `json:"parameters,omitempty"`
	Strict      *bool               `json:"strict,omitempty"`
	Function    *FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition is the nested function object of a Chat Completions tool.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Strict      *bool           `json:"strict,omitempty"`
}

// ---------------------------------------------------------------------------
// Request and Response types
// ---------------------------------------------------------------------------

// StopSequences accepts a single string or an array of strings.
type StopSequences []string

// UnmarshalJSON deserializes a string or string array.
func (s *StopSequences) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = StopSequences{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("stop must be a string or an array of strings: %w", err)
	}
	*s = many
	return nil
}

// CreateResponseRequest is the canonical request. Input is populated from
// either the "input" field (string or items) or the chat-style "messages"
// field; "input" is authoritative when both are present.
type CreateResponseRequest struct {
	Model              string           `json:"model"`
	Input              []Item           `json:"input"`
	Instructions       string           `json:"instructions,omitempty"`
	Tools              []ToolDefinition `json:"tools,omitempty"`
	ToolChoice         *ToolChoice      `json:"tool_choice,omitempty"`
	Store              *bool            `json:"store,omitempty"`
	Stream             bool             `json:"stream,omitempty"`
	PreviousResponseID string           `json:"previous_response_id,omitempty"`
	MaxOutputTokens    *int             `json:"max_output_tokens,omitempty"`
	Temperature        *float64         `json:"temperature,omitempty"`
	TopP               *float64         `json:"top_p,omitempty"`
	Stop               StopSequences    `json:"stop,omitempty"`
	ParallelToolCalls  *bool            `json:"parallel_tool_calls,omitempty"`
	MaxToolCalls       *int             `json:"max_tool_calls,omitempty"`
	Metadata           map[string]any   `json:"metadata,omitempty"`
	User               string           `json:"user,omitempty"`
	Reasoning          *ReasoningConfig `json:"reasoning,omitempty"`
	Text               *TextConfig      `json:"text,omitempty"`

	// FromMessages records that Input was derived from chat-style messages.
	FromMessages bool `json:"-"`
}

// UnmarshalJSON accepts "input" as a string or an item list, "messages"
// as an alternative input form, and "max_tokens" as an alias for
// max_output_tokens.
func (r *CreateResponseRequest) UnmarshalJSON(data []byte) error {
	type plain CreateResponseRequest
	var w struct {
		plain
		Input     json.RawMessage `json:"input"`
		Messages  json.RawMessage `json:"messages"`
		MaxTokens *int            `json:"max_tokens"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = CreateResponseRequest(w.plain)
	if r.MaxOutputTokens == nil {
		r.MaxOutputTokens = w.MaxTokens
	}

	if len(w.Input) > 0 && !isJSONNull(w.Input) {
		var text string
		if err := json.Unmarshal(w.Input, &text); err == nil {
			if text != "" {
				r.Input = []Item{NewUserMessage(text)}
			}
			return nil
		}
		if err := json.Unmarshal(w.Input, &r.Input); err != nil {
			return fmt.Errorf("input: %w", err)
		}
		return nil
	}

	if len(w.Messages) > 0 && !isJSONNull(w.Messages) {
		var msgs []ChatMessage
		if err := json.Unmarshal(w.Messages, &msgs); err != nil {
			return fmt.Errorf("messages: %w", err)
		}
		r.Input = MessagesToItems(msgs)
		r.FromMessages = true
	}
	return nil
}

// NewUserMessage creates a user message item with a single text part.
func NewUserMessage(text string) Item {
	return Item{
		Type:    ItemTypeMessage,
		Message: &MessageData{Role: RoleUser, Content: []ContentPart{{Type: "input_text", Text: text}}},
	}
}

// ResponseStatus represents the overall status of a response.
type ResponseStatus string

const (
	ResponseStatusInProgress ResponseStatus = "in_progress"
	ResponseStatusCompleted  ResponseStatus = "completed"
	ResponseStatusIncomplete ResponseStatus = "incomplete"
	ResponseStatusFailed     ResponseStatus = "failed"
	ResponseStatusCancelled  ResponseStatus = "cancelled"
)

// Response is the canonical response object. Nullable fields use pointer types.
type Response struct {
	ID                 string             `json:"id"`
	Object             string             `json:"object"`
	CreatedAt          int64              `json:"created_at"`
	CompletedAt        *int64             `json:"completed_at"`
	Status             ResponseStatus     `json:"status"`
	IncompleteDetails  *IncompleteDetails `json:"incomplete_details"`
	Model              string             `json:"model"`
	PreviousResponseID *string            `json:"previous_response_id"`
	Instructions       *string            `json:"instructions"`
	Output             []Item             `json:"output"`
	OutputText         string             `json:"output_text"`
	Error              *APIError          `json:"error"`
	Tools              []Tool             `json:"tools"`
	ToolChoice         any                `json:"tool_choice"`
	ParallelToolCalls  bool               `json:"parallel_tool_calls"`
	Temperature        *float64           `json:"temperature"`
	TopP               *float64           `json:"top_p"`
	MaxOutputTokens    *int               `json:"max_output_tokens"`
	Reasoning          *ReasoningConfig   `json:"reasoning"`
	Text               *TextConfig        `json:"text,omitempty"`
	Usage              *Usage             `json:"usage"`
	Store              bool               `json:"store"`
	Metadata           map[string]any     `json:"metadata"`
}

// DeriveOutputText returns the text of the first message item's first
// output_text part, or "" when there is none.
func DeriveOutputText(items []Item) string {
	for _, it := range items {
		if it.Type != ItemTypeMessage || it.Message == nil {
			continue
		}
		for _, p := range it.Message.Output {
			if p.Type == PartOutputText {
				return p.Text
			}
		}
		return ""
	}
	return ""
}

// IncompleteDetails provides information about why a response is incomplete.
type IncompleteDetails struct {
	Reason string `json:"reason,omitempty"`
}

// TextConfig holds text generation configuration.
type TextConfig struct {
	Format *TextFormat `json:"format,omitempty"`
}

// TextFormat specifies the output text format. For json_schema mode the
// Name, Strict and Schema fields carry the schema through as opaque data.
type TextFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Strict *bool           `json:"strict,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// ReasoningConfig holds reasoning configuration.
type ReasoningConfig struct {
	Effort  *string `json:"effort"`
	Summary *string `json:"summary"`
}

// Usage holds token usage information for a response.
type Usage struct {
	InputTokens         int                 `json:"input_tokens"`
	OutputTokens        int                 `json:"output_tokens"`
	TotalTokens         int                 `json:"total_tokens"`
	InputTokensDetails  InputTokensDetails  `json:"input_tokens_details"`
	OutputTokensDetails OutputTokensDetails `json:"output_tokens_details"`
}

// InputTokensDetails provides a breakdown of input token usage.
type InputTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

// OutputTokensDetails provides a breakdown of output token usage.
type OutputTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

// Merge folds the non-zero counters of other into u and recomputes the
// total when the backend did not report one.
func (u *Usage) Merge(other Usage) {
	if other.InputTokens != 0 {
		u.InputTokens = other.InputTokens
	}
	if other.OutputTokens != 0 {
		u.OutputTokens = other.OutputTokens
	}
	if other.TotalTokens != 0 {
		u.TotalTokens = other.TotalTokens
	}
	if other.InputTokensDetails.CachedTokens != 0 {
		u.InputTokensDetails.CachedTokens = other.InputTokensDetails.CachedTokens
	}
	if other.OutputTokensDetails.ReasoningTokens != 0 {
		u.OutputTokensDetails.ReasoningTokens = other.OutputTokensDetails.ReasoningTokens
	}
	if u.TotalTokens < u.InputTokens+u.OutputTokens {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
}
