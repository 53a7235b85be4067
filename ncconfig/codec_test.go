package ncconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allCodecs() map[string]Codec {
	return map[string]Codec{
		"json":       JSONCodec{},
		"msgpack":    MsgpackCodec{},
		"compressed": CompressedCodec{Inner: JSONCodec{}},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	for name, codec := range allCodecs() {
		t.Run(name, func(t *testing.T) {
			nc := NC{Version: 42, Payload: []byte(`{"shards": ["N0", "N1"]}`)}

			b, err := codec.Serialize(nc)
			require.NoError(t, err)

			got, err := codec.Deserialize(b)
			require.NoError(t, err)
			assert.Equal(t, nc.Version, got.Version)
			assert.Equal(t, nc.Payload, got.Payload)
		})
	}
}

func TestCodecExtractVersionMatchesDeserialize(t *testing.T) {
	for name, codec := range allCodecs() {
		t.Run(name, func(t *testing.T) {
			nc := NC{Version: 7, Payload: []byte("payload")}
			b, err := codec.Serialize(nc)
			require.NoError(t, err)

			v, err := codec.ExtractVersion(b)
			require.NoError(t, err)
			assert.Equal(t, nc.Version, v)
		})
	}
}

// TestCodecExtractVersionAgreesOnFailure is the invariant spec.md §4.2
// requires: ExtractVersion must fail iff Deserialize would also fail on the
// same bytes, across a battery of malformed inputs.
func TestCodecExtractVersionAgreesOnFailure(t *testing.T) {
	malformed := [][]byte{
		nil,
		{},
		{0, 1, 2},                       // shorter than the header
		make([]byte, versionHeaderSize), // header only, empty body
		append(make([]byte, versionHeaderSize), []byte("not valid body")...),
	}

	for name, codec := range allCodecs() {
		t.Run(name, func(t *testing.T) {
			for _, b := range malformed {
				_, derr := codec.Deserialize(b)
				_, everr := codec.ExtractVersion(b)
				assert.Equal(t, derr == nil, everr == nil,
					"codec %s disagreed on bytes %v: deserialize err=%v extract err=%v", name, b, derr, everr)
			}
		})
	}
}

func TestCodecExtractVersionDetectsHeaderBodyMismatch(t *testing.T) {
	for name, codec := range allCodecs() {
		t.Run(name, func(t *testing.T) {
			nc := NC{Version: 3, Payload: []byte("x")}
			b, err := codec.Serialize(nc)
			require.NoError(t, err)

			// Corrupt only the header, leaving the body's own embedded
			// version intact -- both methods must reject this blob.
			corrupted := append([]byte{}, b...)
			corrupted[7] ^= 0xFF

			_, derr := codec.Deserialize(corrupted)
			_, everr := codec.ExtractVersion(corrupted)
			assert.Error(t, derr)
			assert.Error(t, everr)
		})
	}
}

func TestDebugJSONStringIsStableAcrossCodecs(t *testing.T) {
	nc := NC{Version: 9, Payload: []byte("abc")}
	want := JSONCodec{}.DebugJSONString(nc)

	assert.Equal(t, want, MsgpackCodec{}.DebugJSONString(nc))
	assert.Equal(t, want, CompressedCodec{Inner: MsgpackCodec{}}.DebugJSONString(nc))
}

func TestVersionCacheMemoizes(t *testing.T) {
	inner := JSONCodec{}
	nc := NC{Version: 5, Payload: []byte("cached")}
	b, err := inner.Serialize(nc)
	require.NoError(t, err)

	vc, err := NewVersionCache(inner, 16)
	require.NoError(t, err)

	v1, err := vc.ExtractVersion(b)
	require.NoError(t, err)
	assert.Equal(t, nc.Version, v1)

	// Second call for identical bytes must hit the cache and return the
	// same answer (behavior is observationally identical either way, this
	// just guards against a cache that returns something else).
	v2, err := vc.ExtractVersion(b)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestVersionCacheDoesNotCacheFailures(t *testing.T) {
	inner := JSONCodec{}
	vc, err := NewVersionCache(inner, 16)
	require.NoError(t, err)

	bad := []byte("too short")
	_, err = vc.ExtractVersion(bad)
	assert.Error(t, err)
	assert.Equal(t, 0, vc.cache.Len())
}

// BenchmarkCompressedCodecExtractVersion measures ExtractVersion on a
// 1 MiB payload. ExtractVersion decompresses the body to check it against
// the header, so its per-op cost grows with the payload, as Deserialize's
// does.
func BenchmarkCompressedCodecExtractVersion(b *testing.B) {
	codec := CompressedCodec{Inner: JSONCodec{}}
	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i)
	}
	nc := NC{Version: 11, Payload: payload}
	data, err := codec.Serialize(nc)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.ExtractVersion(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompressedCodecDeserialize(b *testing.B) {
	codec := CompressedCodec{Inner: JSONCodec{}}
	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i)
	}
	nc := NC{Version: 11, Payload: payload}
	data, err := codec.Serialize(nc)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Deserialize(data); err != nil {
			b.Fatal(err)
		}
	}
}
