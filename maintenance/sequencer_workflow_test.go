package maintenance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRequiresTargetState(t *testing.T) {
	w := NewSequencerWorkflow(3)
	_, err := w.Run(context.Background(), true)
	require.Error(t, err)
}

func TestRunReportsCompletedWhenAlreadyAtTarget(t *testing.T) {
	w := NewSequencerWorkflow(3)
	w.TargetState = SequencingEnabled

	status, err := w.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	assert.Equal(t, SequencingEnabled, w.CurrentSequencingState)
}

func TestRunBlocksDisableWithoutSkippingSafetyCheck(t *testing.T) {
	w := NewSequencerWorkflow(3)
	w.TargetState = SequencingDisabled

	status, err := w.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, StatusBlockedUntilSafe, status)
}

func TestRunStartsDisableWhenSafetyCheckSkipped(t *testing.T) {
	w := NewSequencerWorkflow(3)
	w.TargetState = SequencingDisabled
	w.SkipSafetyCheck = true

	status, err := w.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, status)
}

// TestValueCopyIndependence documents the fix for Open Question (a): a
// copy of a SequencerWorkflow is fully independent of its source, unlike
// the original's no-op move-assignment.
func TestValueCopyIndependence(t *testing.T) {
	original := NewSequencerWorkflow(1)
	original.TargetState = SequencingEnabled

	copy := original
	copy.NodeIndex = 2
	copy.TargetState = SequencingDisabled

	assert.Equal(t, uint32(1), original.NodeIndex)
	assert.Equal(t, SequencingEnabled, original.TargetState)
	assert.Equal(t, uint32(2), copy.NodeIndex)
	assert.Equal(t, SequencingDisabled, copy.TargetState)
}

func TestRunFailsWhenContextCancelled(t *testing.T) {
	w := NewSequencerWorkflow(1)
	w.TargetState = SequencingDisabled
	w.SkipSafetyCheck = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := w.Run(ctx, true)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, status)
}
