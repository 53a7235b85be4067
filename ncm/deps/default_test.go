package deps

import (
	"context"
	"testing"
	"time"

	"github.com/ncmproj/ncm/mode"
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/ncm"
	"github.com/ncmproj/ncm/store/memstore"
	"github.com/ncmproj/ncm/worker"
	"github.com/stretchr/testify/require"
)

func TestDefaultReadsSeededStoreOnInit(t *testing.T) {
	st := memstore.New()
	pool := worker.New()
	d := NewDefault(st, pool, time.Hour, ncconfig.JSONCodec{})

	core := ncm.New(mode.ForTooling(), d, ncconfig.JSONCodec{}, ncm.Options{})
	t.Cleanup(core.Shutdown)

	seed, err := ncconfig.JSONCodec{}.Serialize(ncconfig.NC{Version: 1, Payload: []byte("seed")})
	require.NoError(t, err)
	st.Seed(1, seed)

	require.True(t, core.Init(context.Background(), ncconfig.Empty, true))

	require.Eventually(t, func() bool {
		nc, found := core.GetConfig()
		return found && nc.Version == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDefaultForwardIfUnseenDedupsIdenticalBytes(t *testing.T) {
	st := memstore.New()
	pool := worker.New()
	d := NewDefault(st, pool, time.Hour, ncconfig.JSONCodec{})

	core := ncm.New(mode.ForTooling(), d, ncconfig.JSONCodec{}, ncm.Options{})
	t.Cleanup(core.Shutdown)
	require.True(t, core.Init(context.Background(), ncconfig.Empty, true))

	b, err := ncconfig.JSONCodec{}.Serialize(ncconfig.NC{Version: 3, Payload: []byte("x")})
	require.NoError(t, err)

	// First forward is new; the cache entry it leaves behind makes the
	// second, byte-identical forward a no-op dedup rather than a repeat
	// postOnNCM round trip.
	d.forwardIfUnseen(d.weak, b)
	_, dup, err := d.vcache.Seen(b)
	require.NoError(t, err)
	require.True(t, dup)
}
