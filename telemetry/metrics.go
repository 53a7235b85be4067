package telemetry

// Histogram bucket definitions for the latency profiles the NCM emits.
var (
	// PropagationBuckets covers time-to-publish: the gap between a
	// configuration becoming pending and every worker acknowledging it.
	PropagationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

	// StoreRoundTripBuckets covers a single CAS store call.
	StoreRoundTripBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

	// HeartbeatBuckets covers the heartbeat tick's own processing time.
	HeartbeatBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05}
)

// NCM Core Metrics (spec.md §6's canonical metric names).
var (
	// UpdatesRequestedTotal counts Update calls accepted for processing.
	UpdatesRequestedTotal Counter = NoopStat{}

	// OverwritesRequestedTotal counts Overwrite calls accepted for
	// processing.
	OverwritesRequestedTotal Counter = NoopStat{}

	// ConfigReceivedTotal counts every configuration observation, from
	// any source (store read, ChangeFeed push, proposer round trip).
	ConfigReceivedTotal Counter = NoopStat{}

	// SerializationErrorsTotal counts ExtractVersion/Deserialize/
	// Serialize failures.
	SerializationErrorsTotal Counter = NoopStat{}

	// StagedVersion is the version currently held in staged_nc, or 0
	// when empty.
	StagedVersion Gauge = NoopStat{}

	// PendingVersion is the version currently held in pending_nc, or 0
	// when empty.
	PendingVersion Gauge = NoopStat{}

	// PublishedVersion is the version currently held in local_nc, or 0
	// before the first publication.
	PublishedVersion Gauge = NoopStat{}

	// ConfigPublishedTotal counts successful promotions of pending_nc to
	// local_nc.
	ConfigPublishedTotal Counter = NoopStat{}

	// Started is 1 while the Core's NCM goroutine is running, 0 once
	// Shutdown has completed.
	Started Gauge = NoopStat{}

	// PropagationLatencySeconds measures the time between a
	// configuration becoming pending and its publication completing.
	PropagationLatencySeconds Histogram = NoopStat{}

	// ConsistencyChecksTotal counts CheckAndReportConsistency
	// invocations on server instances, by result.
	ConsistencyChecksTotal CounterVec = noopCounterVec{}

	// IntermediaryShardsTracked is the number of shards the tracker
	// currently holds in an intermediary state.
	IntermediaryShardsTracked Gauge = NoopStat{}

	// AdvanceShardStateFailuresTotal counts failed attempts to advance
	// shards out of an intermediary state via the proposer protocol.
	AdvanceShardStateFailuresTotal Counter = NoopStat{}

	// WorkerCollectiveSeconds measures how long Pool.Publish's
	// collective fan-out took to complete, per publication.
	WorkerCollectiveSeconds Histogram = NoopStat{}

	// StoreOperationsTotal counts ConfigStore calls by operation
	// (update, read, overwrite) and resulting store.Status.
	StoreOperationsTotal CounterVec = noopCounterVec{}

	// StoreRoundTripSeconds measures a single ConfigStore call's
	// latency, by operation.
	StoreRoundTripSeconds HistogramVec = noopHistogramVec{}

	// ChangeFeedPushesTotal counts ChangeFeed notifications received,
	// by subject.
	ChangeFeedPushesTotal CounterVec = noopCounterVec{}
)

// InitMetrics initializes all Prometheus metrics.
// Must be called after InitializeTelemetry().
func InitMetrics() {
	UpdatesRequestedTotal = NewCounter(
		"updates_requested_total",
		"Total Update calls accepted for processing",
	)
	OverwritesRequestedTotal = NewCounter(
		"overwrites_requested_total",
		"Total Overwrite calls accepted for processing",
	)
	ConfigReceivedTotal = NewCounter(
		"config_received_total",
		"Total configuration observations from any source",
	)
	SerializationErrorsTotal = NewCounter(
		"serialization_errors_total",
		"Total ExtractVersion/Deserialize/Serialize failures",
	)
	StagedVersion = NewGauge(
		"staged_version",
		"Version currently held in staged_nc, 0 when empty",
	)
	PendingVersion = NewGauge(
		"pending_version",
		"Version currently held in pending_nc, 0 when empty",
	)
	PublishedVersion = NewGauge(
		"published_version",
		"Version currently held in local_nc, 0 before first publication",
	)
	ConfigPublishedTotal = NewCounter(
		"config_published_total",
		"Total promotions of pending_nc to local_nc",
	)
	Started = NewGauge(
		"started",
		"1 while the NCM goroutine is running, 0 after shutdown",
	)
	PropagationLatencySeconds = NewHistogramWithBuckets(
		"propagation_latency_seconds",
		"Time between a configuration becoming pending and publication completing",
		PropagationBuckets,
	)
	ConsistencyChecksTotal = NewCounterVec(
		"consistency_checks_total",
		"CheckAndReportConsistency invocations by result",
		[]string{"result"},
	)
	IntermediaryShardsTracked = NewGauge(
		"intermediary_shards_tracked",
		"Number of shards currently tracked in an intermediary state",
	)
	AdvanceShardStateFailuresTotal = NewCounter(
		"advance_shard_state_failures_total",
		"Total failed attempts to advance shards out of an intermediary state",
	)
	WorkerCollectiveSeconds = NewHistogramWithBuckets(
		"worker_collective_seconds",
		"Time for every registered worker to acknowledge a publication",
		PropagationBuckets,
	)
	StoreOperationsTotal = NewCounterVec(
		"store_operations_total",
		"ConfigStore calls by operation and resulting status",
		[]string{"operation", "status"},
	)
	StoreRoundTripSeconds = NewHistogramVec(
		"store_round_trip_seconds",
		"ConfigStore call latency by operation",
		[]string{"operation"},
		StoreRoundTripBuckets,
	)
	ChangeFeedPushesTotal = NewCounterVec(
		"changefeed_pushes_total",
		"ChangeFeed notifications received by subject",
		[]string{"subject"},
	)
}
