package collab

import (
	"context"
	"errors"
)

// ErrAcquireTimeout is returned when a send-op handler couldn't get a slot
// before its context deadline passed.
var ErrAcquireTimeout = errors.New("collab: semaphore acquire timed out")

// Semaphore bounds how many send-op pipelines can run concurrently for a
// single connection, so one client can't queue unbounded Submit calls
// ahead of their own acks. Adapted from collab-service/backend/internal/
// collab/semaphore_control.go, whose global MaxSemaphore capped the whole
// process; here each Conn gets its own so one slow document can't starve
// another connection's ops.
type Semaphore struct {
	ch chan struct{}
}

func NewSemaphore(capacity int) *Semaphore {
	return &Semaphore{ch: make(chan struct{}, capacity)}
}

func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ErrAcquireTimeout
	}
}

func (s *Semaphore) Release() {
	select {
	case <-s.ch:
	default:
	}
}
