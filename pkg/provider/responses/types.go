// Package responses implements the adapter for backends that speak the
// OpenAI Responses API ({base}/responses). It forwards requests in the
// Responses wire format and consumes the backend's native SSE events.
package responses

import "github.com/rhuss/weiche/pkg/api"

// --- Request types ---

// responsesRequest is the wire format for POST {base}/responses.
type responsesRequest struct {
	Model              string               `json:"model"`
	Input              []inputItem          `json:"input"`
	Instructions       string               `json:"instructions,omitempty"`
	Tools              []api.Tool           `json:"tools,omitempty"`
	ToolChoice         any                  `json:"tool_choice,omitempty"`
	ParallelToolCalls  *bool                `json:"parallel_tool_calls,omitempty"`
	MaxToolCalls       *int                 `json:"max_tool_calls,omitempty"`
	PreviousResponseID string               `json:"previous_response_id,omitempty"`
	Store              *bool                `json:"store,omitempty"`
	Stream             bool                 `json:"stream,omitempty"`
	Temperature        *float64             `json:"temperature,omitempty"`
	TopP               *float64             `json:"top_p,omitempty"`
	MaxOutputTokens    *int                 `json:"max_output_tokens,omitempty"`
	User               string               `json:"user,omitempty"`
	Metadata           map[string]any       `json:"metadata,omitempty"`
	Reasoning          *responsesReasoning  `json:"reasoning,omitempty"`
	Text               *responsesTextConfig `json:"text,omitempty"`
}

// responsesReasoning carries the reasoning effort hint.
type responsesReasoning struct {
	Effort  string  `json:"effort,omitempty"`
	Summary *string `json:"summary,omitempty"`
}

// responsesTextConfig carries the text output format constraint.
type responsesTextConfig struct {
	Format *api.TextFormat `json:"format,omitempty"`
}

// inputItem is one entry of the request's input array.
type inputItem struct {
	Type      string  `json:"type"`
	Role      string  `json:"role,omitempty"`
	Content   any     `json:"content,omitempty"`
	CallID    string  `json:"call_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Arguments string  `json:"arguments,omitempty"`
	Output    *string `json:"output,omitempty"`
}

// inputPart is a content part of an input message.
type inputPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// --- Response types ---

// responsesResponse is the wire format returned by POST {base}/responses.
type responsesResponse struct {
	ID     string          `json:"id"`
	Object string          `json:"object"`
	Status string          `json:"status"`
	Model  string          `json:"model"`
	Output []responsesItem `json:"output"`
	Usage  *api.Usage      `json:"usage,omitempty"`
	Error  *responsesError `json:"error,omitempty"`
}

// responsesItem represents an output item (message, function_call, reasoning).
type responsesItem struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Status    string                 `json:"status,omitempty"`
	Role      string                 `json:"role,omitempty"`
	Content   []responsesContentPart `json:"content,omitempty"`
	Summary   []responsesContentPart `json:"summary,omitempty"`
	CallID    string                 `json:"call_id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Arguments string                 `json:"arguments,omitempty"`
}

// responsesContentPart is a content part within a message or the summary
// of a reasoning item.
type responsesContentPart struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Refusal string `json:"refusal,omitempty"`
}

// responsesError is the error format in Responses API responses.
type responsesError struct {
	Type    string `json:"type"`
	Code    any    `json:"code"`
	Message string `json:"message"`
}

// --- SSE event types ---

// SSE event type strings from the Responses API consumed by the parser.
const (
	eventResponseCompleted  = "response.completed"
	eventResponseIncomplete = "response.incomplete"
	eventResponseFailed     = "response.failed"
	eventError              = "error"
	eventOutputItemAdded    = "response.output_item.added"
	eventTextDelta          = "response.output_text.delta"
	eventRefusalDelta       = "response.refusal.delta"
	eventFuncCallArgsDelta  = "response.function_call_arguments.delta"
	eventReasoningDelta     = "response.reasoning_text.delta"
	eventReasoningSumDelta  = "response.reasoning_summary_text.delta"
)

// sseEventData is the union of the payload fields the parser reads.
type sseEventData struct {
	Type        string             `json:"type"`
	Delta       string             `json:"delta"`
	OutputIndex int                `json:"output_index"`
	Item        *responsesItem     `json:"item,omitempty"`
	Response    *responsesResponse `json:"response,omitempty"`
	Message     string             `json:"message,omitempty"`
}
