package deps

import (
	"context"
	"sync"
	"time"

	"github.com/ncmproj/ncm/ncm"
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/store"
	"github.com/ncmproj/ncm/worker"
	"github.com/rs/zerolog/log"
)

// Default is the production ncm.Dependencies wiring: a real backing
// store, a worker.Pool fan-out, prometheus-backed Stats, and a
// ticker-driven heartbeat -- grounded on the teacher's gossip ticker loop
// in grpc/gossip.go (ticker + stop channel, not a time.AfterFunc chain).
type Default struct {
	st   store.ConfigStore
	pool *worker.Pool

	heartbeatInterval time.Duration

	// vcache dedups exact byte-for-byte resends arriving from more than
	// one path at once (a heartbeat poll racing a ChangeFeed push) before
	// they ever reach the NCM goroutine.
	vcache *ncconfig.VersionCache

	mu       sync.Mutex
	weak     *ncm.WeakHandle
	stopCh   chan struct{}
	wg       sync.WaitGroup
	cancelCF func()
}

var _ ncm.Dependencies = (*Default)(nil)

// NewDefault wires st as the backing store and pool as the worker
// fan-out, with codec used to dedup raw bytes before forwarding them to
// the core. If st also implements store.ChangeFeed, Init subscribes to
// it so externally-applied changes reach the core without waiting for
// the next heartbeat.
func NewDefault(st store.ConfigStore, pool *worker.Pool, heartbeatInterval time.Duration, codec ncconfig.Codec) *Default {
	vcache, err := ncconfig.NewVersionCache(codec, 64)
	if err != nil {
		// Only returned on a non-positive size, which 64 never is.
		panic(err)
	}
	return &Default{
		st:                st,
		pool:              pool,
		heartbeatInterval: heartbeatInterval,
		vcache:            vcache,
	}
}

// forwardIfUnseen delivers b to the core unless it is a byte-for-byte
// resend already forwarded once.
func (d *Default) forwardIfUnseen(weak *ncm.WeakHandle, b []byte) {
	if _, dup, err := d.vcache.Seen(b); err == nil && dup {
		return
	}
	if core, ok := weak.TryUpgrade(); ok {
		core.ObserveConfigBytes(b)
	}
}

func (d *Default) Init(weak *ncm.WeakHandle, initialNC ncconfig.NC) {
	d.mu.Lock()
	d.weak = weak
	d.stopCh = make(chan struct{})
	d.mu.Unlock()

	if feed, ok := d.st.(store.ChangeFeed); ok {
		cancel, err := feed.Subscribe(func(b []byte) {
			d.forwardIfUnseen(weak, b)
		})
		if err != nil {
			log.Warn().Err(err).Msg("ncm: ChangeFeed subscribe failed, falling back to heartbeat polling only")
		} else {
			d.mu.Lock()
			d.cancelCF = cancel
			d.mu.Unlock()
		}
	}
}

func (d *Default) Shutdown() {
	d.mu.Lock()
	stopCh := d.stopCh
	cancelCF := d.cancelCF
	d.mu.Unlock()

	if cancelCF != nil {
		cancelCF()
	}
	if stopCh != nil {
		close(stopCh)
	}
	d.wg.Wait()
}

func (d *Default) ReadFromStore(consistent bool) {
	weak := d.weak
	d.st.ReadFromStore(context.Background(), consistent, func(status store.Status, b []byte) {
		if status != store.StatusOK {
			if status != store.StatusAgain {
				log.Warn().Stringer("status", status).Msg("ncm: ReadFromStore failed")
			}
			return
		}
		d.forwardIfUnseen(weak, b)
	})
}

func (d *Default) ScheduleHeartbeat(fn func()) {
	d.mu.Lock()
	stopCh := d.stopCh
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stopCh:
				return
			}
		}
	}()
}

func (d *Default) FulfillOnAllWorkers(nc ncconfig.NC) <-chan struct{} {
	return d.pool.Publish(nc)
}

func (d *Default) Store() store.ConfigStore {
	return d.st
}

func (d *Default) Tracer() ncm.Tracer {
	return ncm.LogTracer{}
}

func (d *Default) Stats() ncm.Stats {
	return PrometheusStats()
}

func (d *Default) ReportPropagationLatency(nc ncconfig.NC) {
	log.Debug().Stringer("version", nc.Version).Msg("ncm: configuration published")
}

func (d *Default) CheckAndReportConsistency() {
	// No cross-node consistency check is wired yet (spec.md §9 Open
	// Question (c) resolves this to a pure, optional hook) -- left as
	// a log line so the heartbeat path is still observable.
	log.Debug().Msg("ncm: consistency check tick")
}
