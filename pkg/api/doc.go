// Package api defines the canonical protocol spoken by every part of the
// gateway: the request callers send, the response and streaming events
// they receive, the error taxonomy, ID generation and tool normalization.
//
// All types produce JSON compatible with the OpenAI Responses API wire
// format. Requests are accepted in a lenient superset of that format:
// "input" may be a plain string, and Chat Completions style "messages"
// and nested function tools are converted at the decoding boundary so
// nothing downstream sees an untyped shape.
//
// Core types:
//   - [Item]: unit of conversation (message, function_call, function_call_output, reasoning)
//   - [CreateResponseRequest]: canonical request
//   - [Response]: canonical response with derived output_text
//   - [StreamEvent]: server-sent event for streaming responses
//   - [APIError]: structured error with type, code, param, message and HTTP status
//   - [Tool]: normalized function tool, see [NormalizeTools]
package api
