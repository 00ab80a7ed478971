// Package engine implements the create-response operation of the gateway.
// The Engine dispatches a validated request through the router and writes
// the result either as one canonical response or as the canonical event
// stream, translating normalized backend events with a per-response state
// machine that assigns sequence numbers and output indices.
package engine
