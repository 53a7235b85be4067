// Package store defines the NCM's external CAS-store collaborator: the
// compare-and-swap contract the core relies on to linearize proposer
// updates across the fleet (spec.md §1, §6).
package store

import (
	"context"

	"github.com/ncmproj/ncm/ncconfig"
)

// Status mirrors the store-status taxonomy the core understands
// (spec.md §6, §7). It doubles as the core's own async-operation status
// since every kind the core can surface to a caller already has a home
// here.
type Status int

const (
	StatusOK Status = iota
	StatusVersionMismatch
	StatusAgain
	StatusAccess
	StatusBadMsg
	StatusShutdown
	StatusInvalidParam
	// StatusUpdateRejected reports that an Update's ApplyUpdate returned
	// a non-nil error (spec.md §7 "UpdateRejected ... propagated from
	// codec's ambient error") -- distinct from StatusInvalidParam, which
	// is reserved for a caller-supplied empty/malformed request.
	StatusUpdateRejected
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusVersionMismatch:
		return "VERSION_MISMATCH"
	case StatusAgain:
		return "AGAIN"
	case StatusAccess:
		return "ACCESS"
	case StatusBadMsg:
		return "BADMSG"
	case StatusShutdown:
		return "SHUTDOWN"
	case StatusInvalidParam:
		return "INVALID_PARAM"
	case StatusUpdateRejected:
		return "UPDATE_REJECTED"
	default:
		return "UNKNOWN"
	}
}

// ConfigStore is the backing compare-and-swap store. Implementations may
// run callbacks on any goroutine -- the NCM core never blocks on them, it
// posts a continuation back onto its own goroutine.
type ConfigStore interface {
	// UpdateConfig attempts a CAS: bytes is written iff the store's
	// current version equals baseVersion. cb is invoked exactly once
	// with the outcome; on StatusVersionMismatch the store SHOULD
	// supply its current (version, bytes) when known.
	UpdateConfig(ctx context.Context, bytes []byte, baseVersion ncconfig.Version, cb func(Status, ncconfig.Version, []byte))

	// ReadFromStore triggers a read. consistent requests a
	// linearizable read where the backing store supports distinguishing
	// one; cb carries StatusOK with the bytes found, which are empty
	// when the store holds no configuration, or a non-OK status when the
	// read fails.
	ReadFromStore(ctx context.Context, consistent bool, cb func(Status, []byte))

	// Overwrite performs an unconditional write (the tooling path);
	// cb reports the resulting store version on success.
	Overwrite(ctx context.Context, nc ncconfig.NC, cb func(Status, ncconfig.Version, []byte))
}

// ChangeFeed is an optional capability a ConfigStore may additionally
// implement: a push-based notification of externally-applied changes,
// letting the core avoid polling via ReadFromStore's heartbeat path.
type ChangeFeed interface {
	// Subscribe registers onChange to be invoked with newly observed
	// bytes whenever the store's backing version advances out-of-band
	// (e.g. another process wrote directly). Returns a function that
	// cancels the subscription.
	Subscribe(onChange func([]byte)) (cancel func(), err error)
}
