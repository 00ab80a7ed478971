package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrResponseCancelled is the cancellation cause of a response cancelled
// through the registry. Handlers use it to tell an explicit cancel from a
// client disconnect.
var ErrResponseCancelled = errors.New("response cancelled")

// InFlightRegistry tracks in-flight streaming responses for explicit
// cancellation. It maps response IDs to their cancel functions, allowing
// a DELETE request to cancel a streaming response that is still in progress.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]context.CancelCauseFunc
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]context.CancelCauseFunc),
	}
}

// Register adds an in-flight response to the registry.
func (r *InFlightRegistry) Register(id string, cancel context.CancelCauseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = cancel
}

// Cancel cancels an in-flight response with ErrResponseCancelled as the
// cause. Returns false if the ID is not registered (already completed or
// never existed).
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.entries[id]
	if !ok {
		return false
	}
	cancel(ErrResponseCancelled)
	delete(r.entries, id)
	return true
}

// Remove removes a response from the registry without cancelling it.
// Called when a streaming response completes normally.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of registered responses.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
