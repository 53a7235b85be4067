// Package mode implements the OperationMode capability bitset: it declares
// which roles an NCM instance currently holds and validates that the
// combination is self-consistent.
package mode

// Flags is a bitset of roles an NCM instance can hold.
type Flags uint8

const (
	Client Flags = 1 << iota
	Tooling
	StorageMember
	Sequencer
	Proposer
	Coordinator
)

// Role identifies a node role as carried in node service discovery, used
// by ForNodeRoles to decide which flags a storage/sequencer node starts
// with.
type Role uint8

const (
	SequencerRole Role = 1 << iota
	StorageRole
)

// RoleSet is a small bitset of Role values.
type RoleSet uint8

// Has reports whether r is present in the set.
func (s RoleSet) Has(r Role) bool {
	return s&RoleSet(r) != 0
}

// NewRoleSet builds a RoleSet from individual roles.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= RoleSet(r)
	}
	return s
}

// OperationMode is the capability bitset described in spec.md §3/§4.1.
type OperationMode struct {
	flags Flags
}

func (m OperationMode) setFlags(f Flags) OperationMode {
	m.flags |= f
	return m
}

func (m OperationMode) hasFlags(f Flags) bool {
	return m.flags&f != 0
}

func (m OperationMode) onlyHasFlags(f Flags) bool {
	return m.flags == f
}

// ForClient builds the mode for a read-only client instance.
func ForClient() OperationMode {
	m := OperationMode{}.setFlags(Client)
	if !m.IsValid() {
		panic("mode: ForClient produced an invalid mode")
	}
	return m
}

// ForTooling builds the mode for an operational/emergency tooling instance.
// Tooling instances are allowed to propose updates in addition to
// overwriting the store outright.
func ForTooling() OperationMode {
	m := OperationMode{}.setFlags(Tooling | Proposer)
	if !m.IsValid() {
		panic("mode: ForTooling produced an invalid mode")
	}
	return m
}

// ForNodeRoles builds the mode for a storage node or sequencer, derived
// from the roles the node was configured with. Such nodes start as plain
// observers -- Proposer is off until UpgradeToProposer is called, since a
// node should only propose once it has seen itself as a member in the
// membership config it is observing.
func ForNodeRoles(roles RoleSet) OperationMode {
	m := OperationMode{}
	if roles.Has(SequencerRole) {
		m = m.setFlags(Sequencer)
	}
	if roles.Has(StorageRole) {
		m = m.setFlags(StorageMember)
	}
	if !m.IsValid() {
		panic("mode: ForNodeRoles produced an invalid mode")
	}
	return m
}

// UpgradeToProposer grants Proposer capability. It is a strict add-on and
// is never revoked.
func (m OperationMode) UpgradeToProposer() OperationMode {
	return m.setFlags(Proposer)
}

// IsValid enforces the mode invariant from spec.md §3:
// (¬(Client ∧ Coordinator)) ∧ (Client ∨ Tooling ∨ StorageMember ∨ Sequencer).
func (m OperationMode) IsValid() bool {
	if m.IsClient() && m.IsCoordinator() {
		return false
	}
	if !m.IsClient() && !m.IsTooling() && !m.IsStorageMember() && !m.IsSequencer() {
		return false
	}
	return true
}

func (m OperationMode) IsClient() bool        { return m.hasFlags(Client) }
func (m OperationMode) IsClientOnly() bool    { return m.onlyHasFlags(Client) }
func (m OperationMode) IsTooling() bool       { return m.hasFlags(Tooling) }
func (m OperationMode) IsStorageMember() bool { return m.hasFlags(StorageMember) }
func (m OperationMode) IsSequencer() bool     { return m.hasFlags(Sequencer) }
func (m OperationMode) IsProposer() bool      { return m.hasFlags(Proposer) }
func (m OperationMode) IsCoordinator() bool   { return m.hasFlags(Coordinator) }

// String renders the set flags for logging.
func (m OperationMode) String() string {
	names := []struct {
		f Flags
		s string
	}{
		{Client, "client"},
		{Tooling, "tooling"},
		{StorageMember, "storage"},
		{Sequencer, "sequencer"},
		{Proposer, "proposer"},
		{Coordinator, "coordinator"},
	}
	out := ""
	for _, n := range names {
		if m.hasFlags(n.f) {
			if out != "" {
				out += "|"
			}
			out += n.s
		}
	}
	if out == "" {
		return "none"
	}
	return out
}
