// Package latch provides a one-shot event used by Core.Init and
// Core.Shutdown to block a calling goroutine until a condition fires,
// with an optional timeout (spec.md §5, §9: "initialized,
// shutdown_completed ... one-shot events; post is idempotent; wait
// returns on signal or timeout").
package latch

import (
	"sync"
	"time"
)

// Latch fires exactly once; Post after the first call is a no-op.
type Latch struct {
	once sync.Once
	done chan struct{}
}

// New returns a Latch ready to use.
func New() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Post signals the latch. Idempotent: only the first call has any effect.
func (l *Latch) Post() {
	l.once.Do(func() { close(l.done) })
}

// Wait blocks until Post is called.
func (l *Latch) Wait() {
	<-l.done
}

// WaitTimeout blocks until Post is called or d elapses, reporting which.
func (l *Latch) WaitTimeout(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.done:
		return true
	case <-timer.C:
		return false
	}
}

// Fired reports whether Post has already been called, without blocking.
func (l *Latch) Fired() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
