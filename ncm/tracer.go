package ncm

import (
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/rs/zerolog/log"
)

// TraceSource distinguishes which public operation produced a
// TracerSample.
type TraceSource uint8

const (
	NCMUpdate TraceSource = iota
	NCMOverwrite
)

func (s TraceSource) String() string {
	if s == NCMOverwrite {
		return "NCM_OVERWRITE"
	}
	return "NCM_UPDATE"
}

// TracerSample is built lazily: NCUpdateGen is only invoked if the
// collaborator actually samples, reconstructing the source's
// trace-on-success-only behavior (spec.md §4.4, §6).
type TracerSample struct {
	NCUpdateGen func() string
	PublishedNC ncconfig.NC
	Source      TraceSource
}

// Tracer is the operational-tracing collaborator. Emitted only when a
// proposer operation reports StatusOK and the core is not shutting down.
type Tracer interface {
	Trace(sample TracerSample)
}

// LogTracer is the default Tracer: it logs the sample at debug level,
// matching the teacher's pattern of giving "opaque in production"
// collaborators a logging stand-in rather than doing nothing (see
// telemetry.NoopStat's sibling pattern).
type LogTracer struct{}

var _ Tracer = LogTracer{}

func (LogTracer) Trace(sample TracerSample) {
	log.Debug().
		Stringer("source", sample.Source).
		Stringer("published_version", sample.PublishedNC.Version).
		Msg(sample.NCUpdateGen())
}
