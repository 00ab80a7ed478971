// Package anthropic implements the adapter for the Anthropic Messages API.
//
// System and developer messages are collapsed into the top-level system
// prompt. Function calls become tool_use blocks on the assistant turn and
// function outputs become tool_result blocks on a user turn; consecutive
// blocks of the same role share one turn, as the API requires alternating
// roles. High reasoning effort enables extended thinking, whose deltas are
// surfaced as reasoning.
package anthropic
