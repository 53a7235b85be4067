// Package ncm implements the NCM state machine: the versioned
// publication pipeline, the apply-and-CAS update protocol, and the
// single-writer NCM goroutine that serializes every mutation (spec.md §1,
// §4.4, §5).
package ncm

import (
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/store"
)

// Stats bundles the metrics counters/gauges spec.md §6 names. Concrete
// values are supplied by the telemetry package; a Dependencies
// implementation that doesn't care about metrics can return a Stats
// built entirely from telemetry's no-op constructors.
type Stats struct {
	UpdatesRequested    Counter
	OverwritesRequested Counter
	ConfigReceived      Counter
	SerializationErrors Counter
	StagedVersion       Gauge
	PendingVersion      Gauge
	PublishedVersion    Gauge
	ConfigPublished     Counter
	Started             Gauge
}

// Counter and Gauge mirror telemetry's own interfaces, redeclared here so
// this package does not need to import telemetry just to name a method
// signature -- deps.Default's wiring is what actually binds them to
// prometheus-backed telemetry.Counter/telemetry.Gauge values, which
// satisfy these interfaces structurally.
type Counter interface {
	Inc()
	Add(float64)
}

type Gauge interface {
	Set(float64)
}

// Dependencies is the sole I/O seam the core depends on (spec.md §4.5,
// §6): store access, worker fan-out, tracing, stats, and the scheduling
// primitives needed to get work back onto the NCM goroutine from
// caller-owned threads (a store callback, a heartbeat timer).
type Dependencies interface {
	// Init is called once, synchronously, from Core.Init. weak lets
	// this Dependencies implementation re-enter the Core later --
	// from a store read callback, a ChangeFeed push, or a heartbeat --
	// via weak.TryUpgrade() followed by Core.ObserveConfig/
	// ObserveConfigBytes, without holding a strong reference past
	// Shutdown.
	Init(weak *WeakHandle, initialNC ncconfig.NC)

	// Shutdown tears down whatever background work Init started
	// (heartbeat timers, store subscriptions).
	Shutdown()

	// ReadFromStore triggers an asynchronous read; consistent requests
	// linearizable semantics where the backing store can distinguish
	// one. The result is fed back via weak.TryUpgrade() followed by
	// Core.ObserveConfig/ObserveConfigBytes (the same re-entry path
	// Init uses above), not returned here -- the core never blocks on
	// this call.
	ReadFromStore(consistent bool)

	// ScheduleHeartbeat arranges for fn to be invoked periodically.
	// fn itself is expected to post back onto the NCM goroutine.
	ScheduleHeartbeat(fn func())

	// FulfillOnAllWorkers fans nc out to every registered worker and
	// returns a channel that closes once all have acknowledged it.
	FulfillOnAllWorkers(nc ncconfig.NC) <-chan struct{}

	// Store returns the backing CAS store.
	Store() store.ConfigStore

	// Tracer returns the operational-tracing collaborator.
	Tracer() Tracer

	// Stats returns the metrics bundle.
	Stats() Stats

	// ReportPropagationLatency is called once a new local_nc has been
	// committed, so an implementation can measure time-to-publish.
	ReportPropagationLatency(nc ncconfig.NC)

	// CheckAndReportConsistency is invoked from onHeartBeat when the
	// instance operates as a server (spec.md §9 Open Question (c): a
	// pure telemetry hook, free of mandated semantics).
	CheckAndReportConsistency()
}
