// Package worker models the downstream-consumer fan-out contract
// (spec.md §6 "fulfillOnAllWorkers(fn) -> Collective<Unit>"): a set of
// registered worker contexts, each of which must run its handler against
// every published configuration, in strictly increasing version order,
// before the NCM core may consider a publication complete.
//
// Grounded on the teacher's notify.Hub (registration/cancellation shape)
// generalized from a fire-and-forget signal bus to a fan-out that the
// caller can await completion of, using puzpuzpuz/xsync for the
// subscriber map and jizhuozhi/go-future for the completion barrier --
// both already teacher dependencies.
package worker

import (
	"sync"
	"sync/atomic"

	"github.com/jizhuozhi/go-future"
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/puzpuzpuz/xsync/v3"
)

type registration struct {
	name     string
	onUpdate func(ncconfig.NC)
}

// Pool is a fixed-but-growable set of worker registrations. It is safe
// for concurrent use: RegisterWorker/cancel and Publish may run from
// different goroutines.
type Pool struct {
	workers *xsync.MapOf[uint64, *registration]
	nextID  atomic.Uint64
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{workers: xsync.NewMapOf[uint64, *registration]()}
}

// RegisterWorker adds a worker context identified by name, invoked with
// every published NC. The returned cancel function deregisters it;
// idempotent.
func (p *Pool) RegisterWorker(name string, onUpdate func(ncconfig.NC)) (cancel func()) {
	id := p.nextID.Add(1)
	p.workers.Store(id, &registration{name: name, onUpdate: onUpdate})

	var once sync.Once
	return func() {
		once.Do(func() { p.workers.Delete(id) })
	}
}

// Len reports the number of currently registered workers.
func (p *Pool) Len() int {
	return p.workers.Size()
}

// Names returns the registration names of every currently registered
// worker, for status reporting. Order is unspecified.
func (p *Pool) Names() []string {
	names := make([]string, 0, p.workers.Size())
	p.workers.Range(func(_ uint64, r *registration) bool {
		names = append(names, r.name)
		return true
	})
	return names
}

// Publish fans nc out to every registered worker and returns a channel
// that closes once every worker's handler has returned. Matching
// spec.md §5's "collective future that completes when the slowest worker
// finishes", the NCM core never blocks on this channel inline -- it hands
// it to exactly one collector goroutine.
func (p *Pool) Publish(nc ncconfig.NC) <-chan struct{} {
	var regs []*registration
	p.workers.Range(func(_ uint64, r *registration) bool {
		regs = append(regs, r)
		return true
	})

	done := make(chan struct{})
	if len(regs) == 0 {
		close(done)
		return done
	}

	promise := future.NewPromise[struct{}]()
	var remaining atomic.Int64
	remaining.Store(int64(len(regs)))

	for _, r := range regs {
		r := r
		go func() {
			r.onUpdate(nc)
			if remaining.Add(-1) == 0 {
				promise.Set(struct{}{}, nil)
			}
		}()
	}

	go func() {
		_, _ = promise.Future().Get()
		close(done)
	}()

	return done
}
