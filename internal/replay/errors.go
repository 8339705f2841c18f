package replay

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MinDelay is the floor applied to the inter-message delay of every run,
// regardless of what the caller requested.
const MinDelay = 500 * time.Millisecond

// ErrRunCancelled is the terminal error of a cooperatively cancelled run.
// It marks an expected termination path, not a failure.
var ErrRunCancelled = errors.New("replay run cancelled")

// AlreadyRunningError is returned when a run is started for a channel that
// already has a live run. The caller must cancel the existing run first.
type AlreadyRunningError struct {
	ChannelID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("a replay run is already active in channel %s", e.ChannelID)
}

// Progress reports one delivered event.
type Progress struct {
	// Index is 1-based.
	Index   int
	Total   int
	ActorID string
	Content string
}

// Result reports the terminal state of a run. Err is nil on completion and
// ErrRunCancelled (possibly wrapped) on cancellation.
type Result struct {
	ChannelID string
	Name      string
	Completed bool
	Err       error
}

// Sleep waits for d or until the run is cancelled. The wait itself is
// abortable; cancellation during the wait returns ErrRunCancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ErrRunCancelled
	case <-timer.C:
		return nil
	}
}
