package ingest

import (
	"errors"
	"sync/atomic"
)

// ErrSyncInProgress is returned when a sync is requested while another one
// is still running.
var ErrSyncInProgress = errors.New("sync already in progress")

// RunLock provides non-blocking lock semantics using atomic operations so
// concurrent sync requests fail fast instead of queueing.
type RunLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *RunLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *RunLock) Release() {
	l.state.Store(0)
}
