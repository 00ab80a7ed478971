// Package provider defines the contract between the router and the
// per-backend adapters. An adapter speaks one backend family's wire format
// (Responses, Chat Completions, Messages, GenerateContent) and hands back
// either a canonical response or a channel of normalized Events.
//
// Failures never escape as panics: every adapter error is a *Failure that
// carries the upstream status so the rotator can classify it with
// IsRetryable and the router can pass the status through to the caller.
package provider
