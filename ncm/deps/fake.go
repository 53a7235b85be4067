// Package deps provides concrete ncm.Dependencies implementations: Fake,
// an in-memory synchronous wiring for tests, and Default, the
// production wiring used by cmd/ncmd.
//
// Grounded on the teacher's test_helpers.go fakes in the coordinator
// package, which wire a real in-memory store and a synchronous scheduler
// instead of mocking the dependency interface method-by-method.
package deps

import (
	"context"
	"sync"

	"github.com/ncmproj/ncm/ncm"
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/store"
	"github.com/ncmproj/ncm/worker"
)

// Fake is a synchronous, in-memory ncm.Dependencies suitable for unit
// tests: every callback runs inline on the calling goroutine rather than
// being dispatched to a background worker, and heartbeats only fire when
// the test explicitly invokes Heartbeat.
type Fake struct {
	mu sync.Mutex

	st    store.ConfigStore
	pool  *worker.Pool
	stats ncm.Stats
	trcr  ncm.Tracer

	weak *ncm.WeakHandle

	heartbeatFn func()

	ReadCount      int
	LastConsistent bool

	PropagationLatencies []ncconfig.NC
	ConsistencyChecks    int
}

var _ ncm.Dependencies = (*Fake)(nil)

// NewFake builds a Fake wired to st (typically store/memstore.New()) and
// pool (typically worker.New()).
func NewFake(st store.ConfigStore, pool *worker.Pool) *Fake {
	return &Fake{
		st:    st,
		pool:  pool,
		stats: NoopStats(),
		trcr:  ncm.LogTracer{},
	}
}

func (f *Fake) Init(weak *ncm.WeakHandle, initialNC ncconfig.NC) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weak = weak
}

func (f *Fake) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeatFn = nil
}

func (f *Fake) ReadFromStore(consistent bool) {
	f.mu.Lock()
	f.ReadCount++
	f.LastConsistent = consistent
	weak := f.weak
	f.mu.Unlock()

	f.st.ReadFromStore(context.Background(), consistent, func(status store.Status, b []byte) {
		if status != store.StatusOK || weak == nil {
			return
		}
		if core, ok := weak.TryUpgrade(); ok {
			core.ObserveConfigBytes(b)
		}
	})
}

func (f *Fake) ScheduleHeartbeat(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeatFn = fn
}

// Heartbeat lets a test fire the scheduled heartbeat on demand, since
// Fake never starts a real timer.
func (f *Fake) Heartbeat() {
	f.mu.Lock()
	fn := f.heartbeatFn
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *Fake) FulfillOnAllWorkers(nc ncconfig.NC) <-chan struct{} {
	return f.pool.Publish(nc)
}

func (f *Fake) Store() store.ConfigStore {
	return f.st
}

func (f *Fake) Tracer() ncm.Tracer {
	return f.trcr
}

func (f *Fake) Stats() ncm.Stats {
	return f.stats
}

func (f *Fake) ReportPropagationLatency(nc ncconfig.NC) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PropagationLatencies = append(f.PropagationLatencies, nc)
}

func (f *Fake) CheckAndReportConsistency() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConsistencyChecks++
}
