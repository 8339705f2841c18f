// Package replay provides the shared run registry and run lifecycle
// primitives used by the conversation and scenario runners.
//
// A channel may host at most one live run at a time. The registry owns that
// invariant: reservation is an atomic check-and-insert under a mutex, so two
// concurrent Start calls for the same channel can never both succeed.
package replay

import (
	"context"
	"sync"
)

// Handle tracks one in-flight replay run.
type Handle struct {
	channelID string
	cancel    context.CancelFunc

	done chan struct{}
	err  error
}

// ChannelID returns the channel this run delivers into.
func (h *Handle) ChannelID() string {
	return h.channelID
}

// Done is closed when the run has finished and its cleanup has completed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finishes and returns its terminal error, if any.
// A cancelled run returns ErrRunCancelled.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Cancel signals cooperative cancellation for this run.
func (h *Handle) Cancel() {
	h.cancel()
}

// Finish records the terminal error and releases waiters. Called exactly once
// by the owning runner.
func (h *Handle) Finish(err error) {
	h.err = err
	close(h.done)
}

// Registry maps channel ids to live runs. All methods are safe for concurrent
// use; the zero value is not usable, construct with NewRegistry.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*Handle
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Handle)}
}

// Acquire reserves the channel for a new run. It returns an
// *AlreadyRunningError without side effects when the channel already has a
// live run. The returned context is cancelled when the run is cancelled.
func (r *Registry) Acquire(ctx context.Context, channelID string) (context.Context, *Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[channelID]; ok {
		return nil, nil, &AlreadyRunningError{ChannelID: channelID}
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle := &Handle{
		channelID: channelID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.runs[channelID] = handle

	return runCtx, handle, nil
}

// Release removes the channel's registry entry. Safe to call for channels
// with no live run.
func (r *Registry) Release(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, channelID)
}

// Cancel signals cooperative cancellation for the channel's live run.
// It returns false when no run exists.
func (r *Registry) Cancel(channelID string) bool {
	r.mu.Lock()
	handle, ok := r.runs[channelID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	handle.cancel()
	return true
}

// Running reports whether the channel has a live run.
func (r *Registry) Running(channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.runs[channelID]
	return ok
}
