package deps

import (
	"github.com/ncmproj/ncm/ncm"
	"github.com/ncmproj/ncm/telemetry"
)

// PrometheusStats binds ncm.Stats to the package-level telemetry metrics.
// Call telemetry.InitMetrics() first; before that, telemetry's vars are
// already no-ops, so this is safe to wire unconditionally.
func PrometheusStats() ncm.Stats {
	return ncm.Stats{
		UpdatesRequested:    telemetry.UpdatesRequestedTotal,
		OverwritesRequested: telemetry.OverwritesRequestedTotal,
		ConfigReceived:      telemetry.ConfigReceivedTotal,
		SerializationErrors: telemetry.SerializationErrorsTotal,
		StagedVersion:       telemetry.StagedVersion,
		PendingVersion:      telemetry.PendingVersion,
		PublishedVersion:    telemetry.PublishedVersion,
		ConfigPublished:     telemetry.ConfigPublishedTotal,
		Started:             telemetry.Started,
	}
}

type noopStat struct{}

func (noopStat) Inc()        {}
func (noopStat) Add(float64) {}
func (noopStat) Set(float64) {}

// NoopStats returns an ncm.Stats wired entirely to discard, for tests
// that don't care about metrics.
func NoopStats() ncm.Stats {
	n := noopStat{}
	return ncm.Stats{
		UpdatesRequested:    n,
		OverwritesRequested: n,
		ConfigReceived:      n,
		SerializationErrors: n,
		StagedVersion:       n,
		PendingVersion:      n,
		PublishedVersion:    n,
		ConfigPublished:     n,
		Started:             n,
	}
}
