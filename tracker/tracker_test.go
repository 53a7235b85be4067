package tracker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ncmproj/ncm/ncconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestOnNewConfigInsertsNewlyIntermediaryShards(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New(fixedClock(base))

	tr.OnNewConfig(ncconfig.NC{Version: 1}, func(ncconfig.NC) map[ShardID]IntermediaryState {
		return map[ShardID]IntermediaryState{"N0:S0": ProvisioningMembership}
	})

	assert.Equal(t, 1, tr.Len())
}

func TestOnNewConfigRemovesShardsNoLongerIntermediary(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New(fixedClock(base))

	tr.OnNewConfig(ncconfig.NC{Version: 1}, func(ncconfig.NC) map[ShardID]IntermediaryState {
		return map[ShardID]IntermediaryState{"N0:S0": ProvisioningMembership}
	})
	require.Equal(t, 1, tr.Len())

	tr.OnNewConfig(ncconfig.NC{Version: 2}, func(ncconfig.NC) map[ShardID]IntermediaryState {
		return map[ShardID]IntermediaryState{}
	})
	assert.Equal(t, 0, tr.Len())
}

func TestOnNewConfigRestartsTimeoutOnStateTransition(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := t0
	tr := New(func() time.Time { return clock })

	tr.OnNewConfig(ncconfig.NC{Version: 1}, func(ncconfig.NC) map[ShardID]IntermediaryState {
		return map[ShardID]IntermediaryState{"N0:S0": ProvisioningMembership}
	})

	clock = t0.Add(time.Hour)
	tr.OnNewConfig(ncconfig.NC{Version: 2}, func(ncconfig.NC) map[ShardID]IntermediaryState {
		return map[ShardID]IntermediaryState{"N0:S0": DataMigration}
	})

	// The shard transitioned to a different intermediary state, so its
	// timeout restarts: extracting at t0 (the original entry time) must
	// find nothing due yet.
	_, ok := tr.ExtractNCUpdate(t0)
	assert.False(t, ok)

	_, ok = tr.ExtractNCUpdate(t0.Add(time.Hour))
	assert.True(t, ok)
}

func TestExtractNCUpdateEmptyWhenNothingDue(t *testing.T) {
	tr := New(fixedClock(time.Now()))
	_, ok := tr.ExtractNCUpdate(time.Now())
	assert.False(t, ok)
}

func TestExtractNCUpdateIsDeterministicUnderShuffle(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []ShardID{"N5:S0", "N1:S2", "N3:S1", "N0:S0", "N9:S3"}

	build := func(order []ShardID) *Tracker {
		tr := New(fixedClock(t0))
		tr.OnNewConfig(ncconfig.NC{Version: 1}, func(ncconfig.NC) map[ShardID]IntermediaryState {
			states := make(map[ShardID]IntermediaryState, len(order))
			for _, id := range order {
				states[id] = ProvisioningMembership
			}
			return states
		})
		return tr
	}

	shuffled := append([]ShardID{}, ids...)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	trA := build(ids)
	trB := build(shuffled)

	updA, okA := trA.ExtractNCUpdate(t0)
	updB, okB := trB.ExtractNCUpdate(t0)
	require.True(t, okA)
	require.True(t, okB)

	sa := updA.(*AdvanceShardsUpdate)
	sb := updB.(*AdvanceShardsUpdate)
	assert.Equal(t, sa.Shards, sb.Shards)

	for i := 1; i < len(sa.Shards); i++ {
		assert.Less(t, sa.Shards[i-1], sa.Shards[i])
	}
}

func TestAdvanceShardsUpdateAppliesBoundFunc(t *testing.T) {
	tr := New(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	tr.OnNewConfig(ncconfig.NC{Version: 1}, func(ncconfig.NC) map[ShardID]IntermediaryState {
		return map[ShardID]IntermediaryState{"N0:S0": ProvisioningMembership}
	})

	upd, ok := tr.ExtractNCUpdate(time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC))
	require.True(t, ok)

	advance := upd.(*AdvanceShardsUpdate)
	advance.ApplyFunc = func(base ncconfig.NC, shards []ShardID) (ncconfig.NC, error) {
		return base.WithVersion(base.Version.Succ()), nil
	}

	base := ncconfig.NC{Version: 5}
	got, err := base.ApplyUpdate(advance)
	require.NoError(t, err)
	assert.Equal(t, ncconfig.Version(6), got.Version)
}

func TestAdvanceShardsUpdateNoOpWithoutApplyFunc(t *testing.T) {
	tr := New(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	tr.OnNewConfig(ncconfig.NC{Version: 1}, func(ncconfig.NC) map[ShardID]IntermediaryState {
		return map[ShardID]IntermediaryState{"N0:S0": ProvisioningMembership}
	})

	upd, ok := tr.ExtractNCUpdate(time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC))
	require.True(t, ok)

	base := ncconfig.NC{Version: 5, Payload: []byte("p")}
	got, err := base.ApplyUpdate(upd)
	require.NoError(t, err)
	assert.Equal(t, ncconfig.Version(6), got.Version)
	assert.Equal(t, base.Payload, got.Payload)
}
