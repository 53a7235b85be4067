package ncconfig

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// versionHeaderSize is the width of the fixed big-endian version prefix
// every codec in this package writes ahead of the encoded payload;
// ExtractVersion compares it with the version the body itself carries.
const versionHeaderSize = 8

type jsonEnvelope struct {
	Version Version `json:"version"`
	Payload []byte  `json:"payload"`
}

// JSONCodec is the reference Codec: a fixed 8-byte big-endian version
// header followed by a JSON-encoded envelope. ExtractVersion parses the
// JSON body, decoding only its version field, and rejects the blob when
// that field disagrees with the header.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

func (JSONCodec) Serialize(nc NC) ([]byte, error) {
	body, err := json.Marshal(jsonEnvelope{Version: nc.Version, Payload: nc.Payload})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	out := make([]byte, versionHeaderSize+len(body))
	binary.BigEndian.PutUint64(out[:versionHeaderSize], uint64(nc.Version))
	copy(out[versionHeaderSize:], body)
	return out, nil
}

func (JSONCodec) Deserialize(b []byte) (NC, error) {
	if len(b) < versionHeaderSize {
		return NC{}, ErrBadMsg
	}
	var env jsonEnvelope
	if err := json.Unmarshal(b[versionHeaderSize:], &env); err != nil {
		return NC{}, fmt.Errorf("%w: %v", ErrBadMsg, err)
	}
	headerVersion := Version(binary.BigEndian.Uint64(b[:versionHeaderSize]))
	if headerVersion != env.Version {
		return NC{}, ErrBadMsg
	}
	return NC{Version: env.Version, Payload: env.Payload}, nil
}

func (JSONCodec) ExtractVersion(b []byte) (Version, error) {
	if len(b) < versionHeaderSize {
		return EmptyVersion, ErrBadMsg
	}
	// Only decode the version field, not the payload, so this stays cheap --
	// but apply the same success/failure checks Deserialize does, so the
	// two never disagree on a given blob.
	var env struct {
		Version Version `json:"version"`
	}
	if err := json.Unmarshal(b[versionHeaderSize:], &env); err != nil {
		return EmptyVersion, ErrBadMsg
	}
	headerVersion := Version(binary.BigEndian.Uint64(b[:versionHeaderSize]))
	if headerVersion != env.Version {
		return EmptyVersion, ErrBadMsg
	}
	return headerVersion, nil
}

func (JSONCodec) DebugJSONString(nc NC) string {
	body, err := json.Marshal(jsonEnvelope{Version: nc.Version, Payload: nc.Payload})
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(body)
}
