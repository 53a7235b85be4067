// Package maintenance models the one downstream consumer spec.md names
// explicitly: a SequencerWorkflow that reacts to a newly published
// configuration by reconciling a node's sequencing state. Only its
// interface to the NCM is specified (spec.md §1); the workflow itself is
// a plain state machine grounded on SequencerWorkflow.h.
package maintenance

import (
	"context"
	"fmt"
)

// SequencingState is the sequencing state a node can be driven towards or
// observed in, grounded on SequencerWorkflow.h's SequencingState.
type SequencingState uint8

const (
	SequencingUnknown SequencingState = iota
	SequencingEnabled
	SequencingDisabled
)

func (s SequencingState) String() string {
	switch s {
	case SequencingEnabled:
		return "ENABLED"
	case SequencingDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// MaintenanceStatus is the outcome Run reports, grounded on the source's
// folly::SemiFuture<MaintenanceStatus> return type.
type MaintenanceStatus uint8

const (
	StatusUnknown MaintenanceStatus = iota
	StatusStarted
	StatusCompleted
	StatusBlockedUntilSafe
	StatusFailed
)

func (s MaintenanceStatus) String() string {
	switch s {
	case StatusStarted:
		return "STARTED"
	case StatusCompleted:
		return "COMPLETED"
	case StatusBlockedUntilSafe:
		return "BLOCKED_UNTIL_SAFE"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// SequencerWorkflow tracks the state transitions of a single sequencer
// node in reaction to published configurations.
//
// Resolves spec.md §9 Open Question (a): the original's move-assignment
// operator is a documented no-op (`operator=(SequencerWorkflow&& wf) {
// return *this; }`), a latent bug -- a moved-into workflow silently keeps
// its old state instead of adopting the source's. Go has no
// user-overridable move or copy constructor: assigning or passing a
// SequencerWorkflow by value copies every field, always. The bug class
// this spec's Open Question flags cannot recur here, so SequencerWorkflow
// is simply a plain value type with no special-cased assignment.
type SequencerWorkflow struct {
	NodeIndex              uint32
	TargetState            SequencingState
	CurrentSequencingState SequencingState
	SkipSafetyCheck        bool
}

// NewSequencerWorkflow builds a workflow for the given node, with no
// target state set yet.
func NewSequencerWorkflow(nodeIndex uint32) SequencerWorkflow {
	return SequencerWorkflow{NodeIndex: nodeIndex}
}

// Run reconciles CurrentSequencingState against isSequencingEnabled (the
// latest observation from a published configuration) and reports what
// maintenance action, if any, is required to reach TargetState.
func (w *SequencerWorkflow) Run(ctx context.Context, isSequencingEnabled bool) (MaintenanceStatus, error) {
	if w.TargetState == SequencingUnknown {
		return StatusUnknown, fmt.Errorf("maintenance: no target sequencing state set for node %d", w.NodeIndex)
	}

	w.CurrentSequencingState = SequencingDisabled
	if isSequencingEnabled {
		w.CurrentSequencingState = SequencingEnabled
	}

	if w.CurrentSequencingState == w.TargetState {
		return StatusCompleted, nil
	}

	select {
	case <-ctx.Done():
		return StatusFailed, ctx.Err()
	default:
	}

	if w.TargetState == SequencingDisabled && !w.SkipSafetyCheck {
		return StatusBlockedUntilSafe, nil
	}

	return StatusStarted, nil
}
