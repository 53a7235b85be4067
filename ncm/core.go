package ncm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ncmproj/ncm/internal/latch"
	"github.com/ncmproj/ncm/internal/ratelimit"
	"github.com/ncmproj/ncm/mode"
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/store"
	"github.com/ncmproj/ncm/tracker"
	"github.com/rs/zerolog/log"
)

// initTimeout bounds how long Init(wait=true) blocks on the initialized
// latch (spec.md §4.4, §8).
const initTimeout = 10 * time.Second

// advanceFailureRateLimit bounds how often a failed intermediary-state
// advancement logs an event (spec.md §4.4, §7: at most 5 per 10s).
const (
	advanceFailureRateLimitEvents = 5
	advanceFailureRateLimitWindow = 10 * time.Second
)

// Codec is the wire-format collaborator, re-declared here (structurally
// identical to ncconfig.Codec) only so New's signature does not force
// every caller to import ncconfig just to name the type; the concrete
// value passed in practice always is an ncconfig.Codec.
type Codec = ncconfig.Codec

// ShardStatesFunc extracts the intermediary shard-state view from a
// configuration, handed to the tracker on every staged observation.
type ShardStatesFunc = tracker.ShardStatesFunc

// Core is the NCM state machine (spec.md §2 C6): it owns the
// staged/pending/published pipeline, serializes every mutation onto a
// single goroutine, and authorizes/dispatches update and overwrite
// proposals.
type Core struct {
	deps  Dependencies
	codec Codec

	modeRef atomic.Pointer[mode.OperationMode]

	tracker     *tracker.Tracker
	shardStates ShardStatesFunc

	intermediaryTimeout time.Duration
	clock               tracker.Clock
	isServer            bool

	// Pipeline slots. stagedNC and pendingNC are touched only from the
	// NCM goroutine; localNC is the one slot readable from any
	// goroutine, published with atomic release/acquire semantics.
	stagedNC  *ncconfig.NC
	pendingNC *ncconfig.NC
	localNC   atomic.Pointer[ncconfig.NC]

	reqCh    chan func()
	loopDone chan struct{}
	sendMu   sync.RWMutex // guards reqCh against a send racing closeRequestQueue's close
	closed   atomic.Bool  // set under sendMu's write lock, read under its read lock

	shuttingDown     atomic.Bool
	bootstrapPending bool
	initialized      *latch.Latch
	shutdownDone     *latch.Latch

	weak *WeakHandle

	advanceLimiter *ratelimit.Limiter
}

// Options configures optional behaviors of a Core beyond its
// OperationMode and Dependencies.
type Options struct {
	// IntermediaryShardStateTimeout is how long a shard may remain in an
	// intermediary state before advanceIntermediaryShardStates proposes
	// evicting it. Defaults to 2h, matching common deployments
	// (spec.md §6 Tunables).
	IntermediaryShardStateTimeout time.Duration
	// IsServer disables the consistency reporter when false (spec.md §6
	// Tunables, §9 Open Question (c)).
	IsServer bool
	// ShardStates extracts the intermediary shard-state view of a
	// configuration for the tracker. Required to exercise
	// advanceIntermediaryShardStates meaningfully; a nil func means no
	// shard is ever considered intermediary.
	ShardStates ShardStatesFunc
	// Clock overrides the tracker's time source for deterministic
	// tests.
	Clock tracker.Clock
}

// New builds a Core in mode m, wired to deps and codec. The Core does
// not start running until Init is called.
func New(m mode.OperationMode, deps Dependencies, codec Codec, opts Options) *Core {
	if !m.IsValid() {
		panic("ncm: invalid OperationMode passed to New")
	}

	timeout := opts.IntermediaryShardStateTimeout
	if timeout <= 0 {
		timeout = 2 * time.Hour
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	shardStates := opts.ShardStates
	if shardStates == nil {
		shardStates = func(ncconfig.NC) map[tracker.ShardID]tracker.IntermediaryState { return nil }
	}

	c := &Core{
		deps:                deps,
		codec:               codec,
		tracker:             tracker.New(clock),
		shardStates:         shardStates,
		intermediaryTimeout: timeout,
		clock:               clock,
		isServer:            opts.IsServer,
		reqCh:               make(chan func(), ncmRequestQueueSize),
		loopDone:            make(chan struct{}),
		initialized:         latch.New(),
		shutdownDone:        latch.New(),
		advanceLimiter:      ratelimit.New(advanceFailureRateLimitEvents, advanceFailureRateLimitWindow),
	}
	c.modeRef.Store(&m)
	c.weak = newWeakHandle(c)

	go c.runLoop()

	c.deps.Stats().Started.Set(1)
	return c
}

func (c *Core) mode() mode.OperationMode {
	return *c.modeRef.Load()
}

// Mode returns the current OperationMode, for status reporting.
func (c *Core) Mode() mode.OperationMode {
	return c.mode()
}

// TrackedShards returns the number of shards the ShardStateTracker
// currently considers stuck in an intermediary state, for status
// reporting. Like GetLatestKnownConfig, this is a blocking round trip
// onto the NCM goroutine -- Tracker is not safe for concurrent access
// from outside it. Must not be invoked from the NCM goroutine.
func (c *Core) TrackedShards() int {
	result := make(chan int, 1)
	if !c.postOnNCM(func() { result <- c.tracker.Len() }) {
		return 0
	}
	return <-result
}

// Init installs the initial configuration through the publish pipeline
// and, if waitUntilInitialized, blocks the caller for up to 10s on the
// initialized latch. Must not be invoked from the NCM goroutine.
func (c *Core) Init(ctx context.Context, initialNC ncconfig.NC, waitUntilInitialized bool) bool {
	c.deps.Init(c.weak, initialNC)

	c.postOnNCM(func() {
		c.bootstrapPending = true
		if !initialNC.IsEmpty() {
			c.onNewConfig(initialNC)
		}
		c.deps.ReadFromStore(c.readConsistency())
	})
	c.deps.ScheduleHeartbeat(func() {
		c.postOnNCM(c.onHeartBeat)
	})

	if !waitUntilInitialized {
		return true
	}
	return c.initialized.WaitTimeout(initTimeout)
}

func (c *Core) readConsistency() bool {
	return c.mode().IsStorageMember() && c.localNC.Load() == nil
}

// Update authorizes (Proposer required) and enqueues an update request
// onto the NCM goroutine. cb is invoked exactly once.
func (c *Core) Update(updates []ncconfig.Update, cb func(store.Status, ncconfig.NC)) {
	if !c.mode().IsProposer() {
		cb(store.StatusAccess, ncconfig.NC{})
		return
	}
	c.deps.Stats().UpdatesRequested.Inc()
	if !c.postOnNCM(func() { c.onUpdateRequest(updates, cb) }) {
		cb(store.StatusShutdown, ncconfig.NC{})
	}
}

// Overwrite authorizes (Tooling required) and delegates to the store
// collaborator's overwrite path. cb is invoked exactly once.
func (c *Core) Overwrite(nc ncconfig.NC, cb func(store.Status, ncconfig.NC)) {
	if !c.mode().IsTooling() {
		cb(store.StatusAccess, ncconfig.NC{})
		return
	}
	if nc.IsEmpty() && len(nc.Payload) == 0 {
		cb(store.StatusInvalidParam, ncconfig.NC{})
		return
	}
	c.deps.Stats().OverwritesRequested.Inc()
	c.deps.Store().Overwrite(context.Background(), nc, func(status store.Status, v ncconfig.Version, bytes []byte) {
		if !c.postOnNCM(func() { c.onOverwriteResult(status, v, bytes, nc, cb) }) {
			cb(store.StatusShutdown, ncconfig.NC{})
		}
	})
}

// ObserveConfig posts a freshly observed configuration onto the NCM
// goroutine for staging. This is the re-entry point a Dependencies
// implementation calls (via the WeakHandle handed to Init) from a store
// read callback or a ChangeFeed push.
func (c *Core) ObserveConfig(nc ncconfig.NC) {
	c.postOnNCM(func() { c.onNewConfig(nc) })
}

// ObserveConfigBytes is the bytes-form counterpart of ObserveConfig: it
// runs the ExtractVersion fast-path check before deserializing, so a
// Dependencies implementation can hand raw store/ChangeFeed payloads
// straight through without pre-checking whether they're stale itself.
func (c *Core) ObserveConfigBytes(b []byte) {
	c.postOnNCM(func() { c.onNewConfigBytes(b) })
}

// GetConfig returns a lock-free snapshot of local_nc.
func (c *Core) GetConfig() (ncconfig.NC, bool) {
	p := c.localNC.Load()
	if p == nil {
		return ncconfig.NC{}, false
	}
	return *p, true
}

// GetLatestKnownConfig returns the version-wise max of local_nc,
// pending_nc, and staged_nc (spec.md I5). Must not be invoked from the
// NCM goroutine (it performs a blocking round trip onto it).
func (c *Core) GetLatestKnownConfig() ncconfig.NC {
	result := make(chan ncconfig.NC, 1)
	if !c.postOnNCM(func() { result <- c.latestKnownConfigLocked() }) {
		nc, _ := c.GetConfig()
		return nc
	}
	return <-result
}

func (c *Core) latestKnownConfigLocked() ncconfig.NC {
	best := ncconfig.Empty
	if p := c.localNC.Load(); p != nil && p.Version > best.Version {
		best = *p
	}
	if c.pendingNC != nil && c.pendingNC.Version > best.Version {
		best = *c.pendingNC
	}
	if c.stagedNC != nil && c.stagedNC.Version > best.Version {
		best = *c.stagedNC
	}
	return best
}

// UpgradeToProposer ORs in the Proposer flag. Never revoked.
func (c *Core) UpgradeToProposer() {
	for {
		old := c.modeRef.Load()
		upgraded := old.UpgradeToProposer()
		if c.modeRef.CompareAndSwap(old, &upgraded) {
			return
		}
	}
}

// Shutdown sets the shutdown flag, tears down dependencies, then blocks
// until both the initialized and shutdown_completed latches fire.
// Idempotent.
func (c *Core) Shutdown() {
	if !c.shuttingDown.CompareAndSwap(false, true) {
		c.shutdownDone.Wait()
		return
	}

	c.weak.invalidate()
	c.closeRequestQueue()
	<-c.loopDone // wait for runLoop to drain every already-queued callback exactly once

	c.deps.Shutdown()
	c.initialized.Post()
	c.deps.Stats().Started.Set(0)
	c.shutdownDone.Post()
}

// ---- internal pipeline (NCM goroutine only below this point) ----

// consumeBootstrap marks the NCM initialized the first time an
// observation processed after Init leaves no publication in flight --
// even one that turns out stale, malformed, or empty, since a freshly
// bootstrapped cluster with nothing yet in the store is still a healthy,
// initialized state (spec.md §8 boundary: "init(empty_nc, wait=true)
// returns true within 10s on a healthy system"). While a config is staged
// or pending, onProcessingFinished posts the latch once it is published.
func (c *Core) consumeBootstrap() {
	if c.bootstrapPending && c.pendingNC == nil && c.stagedNC == nil {
		c.bootstrapPending = false
		c.initialized.Post()
	}
}

func (c *Core) hasProcessed(v ncconfig.Version) bool {
	local := c.localNC.Load()
	return local != nil && v != ncconfig.EmptyVersion && v <= local.Version
}

// onNewConfigBytes is the bytes-form observation entry point: extractVersion
// is the mandatory fast path that avoids deserializing an already-processed
// version (spec.md §4.4 step 1).
func (c *Core) onNewConfigBytes(b []byte) {
	defer c.consumeBootstrap()
	c.deps.Stats().ConfigReceived.Inc()

	v, err := c.codec.ExtractVersion(b)
	if err != nil {
		c.deps.Stats().SerializationErrors.Inc()
		return
	}
	if c.hasProcessed(v) {
		return
	}

	nc, err := c.codec.Deserialize(b)
	if err != nil {
		c.deps.Stats().SerializationErrors.Inc()
		return
	}
	c.onNewConfig(nc)
}

func (c *Core) onNewConfig(nc ncconfig.NC) {
	defer c.consumeBootstrap()
	if !c.shouldStageVersion(nc.Version) {
		return
	}

	c.stagedNC = &nc
	c.tracker.OnNewConfig(nc, c.shardStates)
	c.deps.Stats().StagedVersion.Set(float64(nc.Version))

	c.advanceIntermediaryShardStates()
	c.maybeProcessStagedConfig()
}

// shouldStageVersion implements spec.md §4.4 step 2.
func (c *Core) shouldStageVersion(v ncconfig.Version) bool {
	if c.stagedNC != nil && v <= c.stagedNC.Version {
		return false
	}
	if c.pendingNC != nil && v <= c.pendingNC.Version {
		return false
	}
	return !c.hasProcessed(v)
}

// maybeProcessStagedConfig promotes staged_nc to pending_nc if the
// pending slot is free, then fans the new pending config out to workers.
func (c *Core) maybeProcessStagedConfig() {
	if c.stagedNC == nil || c.pendingNC != nil {
		return
	}

	nc := *c.stagedNC
	c.pendingNC = &nc
	c.stagedNC = nil
	c.deps.Stats().PendingVersion.Set(float64(nc.Version))

	done := c.deps.FulfillOnAllWorkers(nc)
	go func() {
		<-done
		c.postOnNCM(func() { c.onProcessingFinished(nc) })
	}()
}

// onProcessingFinished commits pending_nc to local_nc once the fan-out
// collective completes, then drains any newer staged version.
func (c *Core) onProcessingFinished(nc ncconfig.NC) {
	if c.pendingNC == nil || c.pendingNC.Version != nc.Version {
		panic(fmt.Sprintf("ncm: onProcessingFinished version mismatch: pending=%v got=%s", c.pendingNC, nc.Version))
	}

	c.localNC.Store(&nc)
	c.pendingNC = nil

	c.deps.Stats().PublishedVersion.Set(float64(nc.Version))
	c.deps.Stats().ConfigPublished.Inc()
	c.deps.ReportPropagationLatency(nc)

	c.initialized.Post()
	c.maybeProcessStagedConfig()
}

// onUpdateRequest implements the proposer protocol (spec.md §4.4).
func (c *Core) onUpdateRequest(updates []ncconfig.Update, cb func(store.Status, ncconfig.NC)) {
	if !c.mode().IsProposer() {
		cb(store.StatusAccess, ncconfig.NC{})
		return
	}
	if c.shuttingDown.Load() {
		cb(store.StatusShutdown, ncconfig.NC{})
		return
	}

	base := c.latestKnownConfigLocked()
	baseVersion := base.Version

	next := base
	for _, u := range updates {
		var err error
		next, err = next.ApplyUpdate(u)
		if err != nil {
			rejected := &ncconfig.UpdateRejectedError{Cause: err}
			log.Debug().Err(rejected).Msg("ncm: update rejected")
			cb(store.StatusUpdateRejected, ncconfig.NC{})
			return
		}
	}
	next = next.WithVersion(baseVersion.Succ())

	bytes, err := c.codec.Serialize(next)
	if err != nil {
		c.deps.Stats().SerializationErrors.Inc()
		cb(store.StatusBadMsg, ncconfig.NC{})
		return
	}

	c.deps.Store().UpdateConfig(context.Background(), bytes, baseVersion, func(status store.Status, storedVersion ncconfig.Version, storedBytes []byte) {
		if !c.postOnNCM(func() { c.onUpdateResult(status, storedVersion, storedBytes, next, cb) }) {
			cb(store.StatusShutdown, ncconfig.NC{})
		}
	})
}

func (c *Core) onUpdateResult(status store.Status, storedVersion ncconfig.Version, storedBytes []byte, next ncconfig.NC, cb func(store.Status, ncconfig.NC)) {
	switch status {
	case store.StatusOK:
		c.onNewConfig(next)
		cb(store.StatusOK, next)
		c.trace(next, NCMUpdate)
	case store.StatusVersionMismatch:
		// A mismatch means some other writer's CAS beat ours to the
		// store; storedVersion/storedBytes is whatever they just
		// committed, regardless of how it compares to next -- fold it
		// into our own pipeline either way so we converge on it too.
		if len(storedBytes) > 0 {
			if storedNC, err := c.codec.Deserialize(storedBytes); err == nil {
				c.onNewConfig(storedNC)
				cb(store.StatusVersionMismatch, storedNC)
				return
			}
		}
		cb(store.StatusVersionMismatch, ncconfig.NC{})
	default:
		cb(status, ncconfig.NC{})
	}
}

func (c *Core) onOverwriteResult(status store.Status, storedVersion ncconfig.Version, storedBytes []byte, requested ncconfig.NC, cb func(store.Status, ncconfig.NC)) {
	if status != store.StatusOK {
		cb(status, ncconfig.NC{})
		return
	}

	applied := requested.WithVersion(storedVersion)
	c.onNewConfig(applied)
	cb(store.StatusOK, applied)
	c.trace(applied, NCMOverwrite)
}

func (c *Core) trace(nc ncconfig.NC, source TraceSource) {
	if c.shuttingDown.Load() {
		return
	}
	c.deps.Tracer().Trace(TracerSample{
		NCUpdateGen: func() string { return c.codec.DebugJSONString(nc) },
		PublishedNC: nc,
		Source:      source,
	})
}

// onHeartBeat triggers a store read and drives intermediary-state
// advancement; on servers it also invokes the consistency reporter
// (spec.md §4.4).
func (c *Core) onHeartBeat() {
	c.deps.ReadFromStore(c.readConsistency())
	c.advanceIntermediaryShardStates()
	if c.isServer {
		c.deps.CheckAndReportConsistency()
	}
}

// advanceIntermediaryShardStates is a no-op unless Proposer and not
// shutting down (spec.md §4.4).
func (c *Core) advanceIntermediaryShardStates() {
	if !c.mode().IsProposer() || c.shuttingDown.Load() {
		return
	}

	till := c.clock().Add(-c.intermediaryTimeout)
	upd, ok := c.tracker.ExtractNCUpdate(till)
	if !ok {
		return
	}

	// Matches the public Update path's accounting: a corrective update
	// triggered internally by the tracker is still an update request
	// (spec.md §6 Stats), so it bumps the same counter Update() does.
	c.deps.Stats().UpdatesRequested.Inc()
	c.onUpdateRequest([]ncconfig.Update{upd}, func(status store.Status, _ ncconfig.NC) {
		if status == store.StatusOK || status == store.StatusVersionMismatch {
			return
		}
		if c.advanceLimiter.Allow(time.Now()) {
			log.Error().Stringer("status", status).Msg("ncm: advance intermediary shard states failed")
		}
	})
}
