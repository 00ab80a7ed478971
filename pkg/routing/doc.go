// Package routing maps caller-visible model names to ordered backend
// lists and drives the fallback cascade.
//
// A Table is parsed from the raw routes JSON on every request, so a
// changed configuration takes effect without restart and no parsed state
// is shared between requests. Router.Execute tries each backend of the
// resolved route in configured order; for each backend a Rotator tries
// the configured credentials in order, moving on only after a retryable
// failure. All attempts are strictly sequential.
package routing
