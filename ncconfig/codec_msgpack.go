package ncconfig

import (
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type msgpackEnvelope struct {
	Version Version `msgpack:"version"`
	Payload []byte  `msgpack:"payload"`
}

// MsgpackCodec is a denser alternative to JSONCodec, grounded on the
// teacher's use of vmihailenco/msgpack for its own wire-efficient
// encodings. Same fixed version-header layout as JSONCodec so the two are
// interchangeable by configuration (cfg.Configuration.NCM.Codec).
type MsgpackCodec struct{}

var _ Codec = MsgpackCodec{}

func (MsgpackCodec) Serialize(nc NC) ([]byte, error) {
	body, err := msgpack.Marshal(msgpackEnvelope{Version: nc.Version, Payload: nc.Payload})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	out := make([]byte, versionHeaderSize+len(body))
	binary.BigEndian.PutUint64(out[:versionHeaderSize], uint64(nc.Version))
	copy(out[versionHeaderSize:], body)
	return out, nil
}

func (MsgpackCodec) Deserialize(b []byte) (NC, error) {
	if len(b) < versionHeaderSize {
		return NC{}, ErrBadMsg
	}
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(b[versionHeaderSize:], &env); err != nil {
		return NC{}, fmt.Errorf("%w: %v", ErrBadMsg, err)
	}
	headerVersion := Version(binary.BigEndian.Uint64(b[:versionHeaderSize]))
	if headerVersion != env.Version {
		return NC{}, ErrBadMsg
	}
	return NC{Version: env.Version, Payload: env.Payload}, nil
}

func (MsgpackCodec) ExtractVersion(b []byte) (Version, error) {
	if len(b) < versionHeaderSize {
		return EmptyVersion, ErrBadMsg
	}
	var env struct {
		Version Version `msgpack:"version"`
	}
	if err := msgpack.Unmarshal(b[versionHeaderSize:], &env); err != nil {
		return EmptyVersion, ErrBadMsg
	}
	headerVersion := Version(binary.BigEndian.Uint64(b[:versionHeaderSize]))
	if headerVersion != env.Version {
		return EmptyVersion, ErrBadMsg
	}
	return headerVersion, nil
}

func (c MsgpackCodec) DebugJSONString(nc NC) string {
	// Debug output stays human-readable JSON regardless of wire codec.
	return JSONCodec{}.DebugJSONString(nc)
}
