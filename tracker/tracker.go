// Package tracker implements the companion shard-state tracker: it
// observes each staged configuration and ages out shards stuck in an
// intermediary membership state, producing a batched update once their
// timeout has elapsed.
package tracker

import (
	"sort"
	"time"

	"github.com/ncmproj/ncm/ncconfig"
)

// ShardID identifies a single shard within a node's membership entry.
// Kept as an opaque comparable string -- the tracker never interprets it
// beyond ordering for deterministic tie-breaking.
type ShardID string

// IntermediaryState enumerates the transitional membership states a shard
// can be observed in. The tracker does not care which one -- any non-zero
// value is "intermediary" and ages out the same way.
type IntermediaryState uint8

const (
	// NotIntermediary is the zero value; ShardStates funcs must never
	// report it as a map entry (absence means "not intermediary").
	NotIntermediary IntermediaryState = iota
	ProvisioningMembership
	DataMigration
	ShrinkOnStorage
)

// ShardStatesFunc extracts the set of shards currently in an intermediary
// state from a configuration snapshot. Supplied by the caller (the NCM
// core, wired to its Codec/payload schema) since the tracker is agnostic
// to payload shape per spec.md §4.2's Codec boundary.
type ShardStatesFunc func(nc ncconfig.NC) map[ShardID]IntermediaryState

type entry struct {
	state     IntermediaryState
	enteredAt time.Time
}

// Clock abstracts wall-clock time so tests can drive tracker timeouts
// deterministically, grounded on the injectable-time-source idiom the
// teacher uses for its logical clock.
type Clock func() time.Time

// Tracker holds the ShardID -> (IntermediaryState, enteredAt) mapping from
// spec.md §4.3. A Tracker is not safe for concurrent use; the NCM core
// owns it exclusively from its single goroutine.
type Tracker struct {
	clock   Clock
	entries map[ShardID]entry
}

// New builds a Tracker using the given clock for EnteredAt stamps. Pass
// time.Now for production use.
func New(clock Clock) *Tracker {
	return &Tracker{clock: clock, entries: make(map[ShardID]entry)}
}

// OnNewConfig reconciles tracked entries against the shards nc reports as
// intermediary: newly-intermediary shards are inserted stamped with the
// current time, shards no longer intermediary are dropped, and shards
// still intermediary in the same state are left untouched (their
// enteredAt is NOT refreshed -- spec.md §4.3 entries age from first
// observation, not most recent).
func (t *Tracker) OnNewConfig(nc ncconfig.NC, shardStates ShardStatesFunc) {
	observed := shardStates(nc)

	for id := range t.entries {
		if _, stillIntermediary := observed[id]; !stillIntermediary {
			delete(t.entries, id)
		}
	}

	now := t.clock()
	for id, state := range observed {
		if state == NotIntermediary {
			delete(t.entries, id)
			continue
		}
		existing, tracked := t.entries[id]
		if !tracked {
			t.entries[id] = entry{state: state, enteredAt: now}
			continue
		}
		if existing.state != state {
			// A transition between two different intermediary states
			// restarts the timeout -- it is a new observation, not a
			// continuation of the old one.
			t.entries[id] = entry{state: state, enteredAt: now}
		}
	}
}

// Len reports the number of shards currently tracked as intermediary.
func (t *Tracker) Len() int {
	return len(t.entries)
}

// ExtractNCUpdate produces one batched Update advancing every shard whose
// EnteredAt is at or before till, or (nil, false) if no such shard exists.
// Ties at equal EnteredAt are broken by ascending ShardID so repeated
// extraction over the same tracker state is byte-reproducible.
func (t *Tracker) ExtractNCUpdate(till time.Time) (ncconfig.Update, bool) {
	var due []ShardID
	for id, e := range t.entries {
		if !e.enteredAt.After(till) {
			due = append(due, id)
		}
	}
	if len(due) == 0 {
		return nil, false
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })

	states := make(map[ShardID]IntermediaryState, len(due))
	for _, id := range due {
		states[id] = t.entries[id].state
	}
	return &AdvanceShardsUpdate{Shards: due, FromStates: states}, true
}

// AdvanceShardsUpdate is the Update produced by ExtractNCUpdate. How
// "advancing" a shard out of an intermediary state is encoded in the
// payload is Codec-specific, so this type carries the decision of which
// shards to advance plus an optional ApplyFunc. The NCM core folds the
// update through ncconfig.NC.ApplyUpdate as ExtractNCUpdate returns it,
// with ApplyFunc nil, so there only the version advances.
type AdvanceShardsUpdate struct {
	Shards     []ShardID
	FromStates map[ShardID]IntermediaryState
	// ApplyFunc, if set, performs the actual payload transformation. Left
	// nil by ExtractNCUpdate so the tracker package stays payload-agnostic.
	ApplyFunc func(base ncconfig.NC, shards []ShardID) (ncconfig.NC, error)
}

var _ ncconfig.Update = (*AdvanceShardsUpdate)(nil)

func (u *AdvanceShardsUpdate) Apply(base ncconfig.NC) (ncconfig.NC, error) {
	if u.ApplyFunc == nil {
		// No payload-transformation wired: advancing is a structural
		// no-op that still bumps the version, matching a deployment
		// that tracks intermediary state purely out-of-band.
		return base, nil
	}
	return u.ApplyFunc(base, u.Shards)
}
