package ncconfig

import "fmt"

// NC is the immutable, versioned configuration snapshot the NCM
// disseminates. The NCM is agnostic to the shape of Payload; it is an
// opaque blob whose only contract is that Codec can round-trip it.
type NC struct {
	Version Version
	Payload []byte
}

// Empty is the zero-value configuration: version EmptyVersion, no
// payload. getLatestKnownConfig returns this when no slot holds anything.
var Empty = NC{Version: EmptyVersion}

// IsEmpty reports whether nc carries the distinguished empty version.
func (nc NC) IsEmpty() bool {
	return nc.Version.IsEmpty()
}

// WithVersion returns a copy of nc renumbered to v, independent of
// whatever ApplyUpdate would have produced. Used by the proposer protocol
// to keep the version sequence contiguous across a multi-update batch.
func (nc NC) WithVersion(v Version) NC {
	return NC{Version: v, Payload: nc.Payload}
}

// Update is a single state-transition delta. The NCM never inspects an
// Update's internals -- it only ever folds one over an NC via ApplyUpdate.
type Update interface {
	// Apply produces the NC that results from applying this delta to base.
	// A non-nil error means the update was rejected; the returned NC is
	// then ignored and the caller must stop folding further updates (see
	// ncm.onUpdateRequest).
	Apply(base NC) (NC, error)
}

// ApplyUpdate folds u onto nc, producing a new NC whose version is
// nc.Version.Succ() unless the update (or a later WithVersion call)
// renumbers it. A zero NC paired with a non-nil error signals rejection
// per spec.md §3 ("applyUpdate(u) → NC? nullable").
func (nc NC) ApplyUpdate(u Update) (NC, error) {
	next, err := u.Apply(nc)
	if err != nil {
		return NC{}, err
	}
	if next.Version == EmptyVersion || next.Version <= nc.Version {
		next.Version = nc.Version.Succ()
	}
	return next, nil
}

func (nc NC) String() string {
	return fmt.Sprintf("NC{%s, %d bytes}", nc.Version, len(nc.Payload))
}

// UpdateRejectedError wraps the error returned by an Update's Apply method
// so that ncm's onUpdateRequest can report it the way spec.md §7 names it
// ("UpdateRejected ... propagated from codec's ambient error").
type UpdateRejectedError struct {
	Cause error
}

func (e *UpdateRejectedError) Error() string {
	return fmt.Sprintf("update rejected: %v", e.Cause)
}

func (e *UpdateRejectedError) Unwrap() error {
	return e.Cause
}
