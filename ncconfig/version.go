// Package ncconfig holds the NCM's payload-agnostic value types: the
// version scalar, the immutable configuration snapshot, and the Codec
// collaborator used to move both to and from the wire.
package ncconfig

import "fmt"

// Version is an opaque, totally ordered scalar. EmptyVersion sorts below
// every real version a store or codec will ever produce.
type Version uint64

// EmptyVersion is the distinguished value less than all real versions.
const EmptyVersion Version = 0

// Succ returns the next version in sequence.
func (v Version) Succ() Version {
	return v + 1
}

// IsEmpty reports whether v is the distinguished empty version.
func (v Version) IsEmpty() bool {
	return v == EmptyVersion
}

func (v Version) String() string {
	if v.IsEmpty() {
		return "<empty>"
	}
	return fmt.Sprintf("v%d", uint64(v))
}
