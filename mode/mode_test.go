package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForClient(t *testing.T) {
	m := ForClient()
	assert.True(t, m.IsClient())
	assert.True(t, m.IsClientOnly())
	assert.False(t, m.IsProposer())
	assert.True(t, m.IsValid())
}

func TestForTooling(t *testing.T) {
	m := ForTooling()
	assert.True(t, m.IsTooling())
	assert.True(t, m.IsProposer())
	assert.False(t, m.IsClient())
	assert.True(t, m.IsValid())
}

func TestForNodeRoles(t *testing.T) {
	tests := []struct {
		name           string
		roles          RoleSet
		wantSequencer  bool
		wantStorage    bool
		wantProposer   bool
	}{
		{"storage only", NewRoleSet(StorageRole), false, true, false},
		{"sequencer only", NewRoleSet(SequencerRole), true, false, false},
		{"both", NewRoleSet(SequencerRole, StorageRole), true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ForNodeRoles(tt.roles)
			assert.Equal(t, tt.wantSequencer, m.IsSequencer())
			assert.Equal(t, tt.wantStorage, m.IsStorageMember())
			assert.Equal(t, tt.wantProposer, m.IsProposer())
			require.True(t, m.IsValid())
		})
	}
}

func TestUpgradeToProposer(t *testing.T) {
	m := ForNodeRoles(NewRoleSet(StorageRole))
	require.False(t, m.IsProposer())
	m = m.UpgradeToProposer()
	assert.True(t, m.IsProposer())
	assert.True(t, m.IsStorageMember())
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		valid bool
	}{
		{"client alone", Client, true},
		{"client and coordinator", Client | Coordinator, false},
		{"empty", 0, false},
		{"tooling alone", Tooling, true},
		{"storage alone", StorageMember, true},
		{"sequencer alone", Sequencer, true},
		{"storage and coordinator", StorageMember | Coordinator, true},
		{"proposer alone, no base role", Proposer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := OperationMode{flags: tt.flags}
			assert.Equal(t, tt.valid, m.IsValid())
		})
	}
}

func TestIsClientOnly(t *testing.T) {
	client := ForClient()
	assert.True(t, client.IsClientOnly())

	mixed := OperationMode{flags: Client | Tooling}
	assert.False(t, mixed.IsClientOnly())
}
