package ncconfig

import "errors"

// ErrBadMsg is returned by Deserialize/ExtractVersion when the blob cannot
// be parsed. ErrSerialize is returned by Serialize when an NC cannot be
// turned into bytes (e.g. an encoder error on the payload).
var (
	ErrBadMsg    = errors.New("ncconfig: malformed configuration blob")
	ErrSerialize = errors.New("ncconfig: failed to serialize configuration")
)

// Codec is the wire-format collaborator the NCM core depends on but does
// not implement itself (spec.md §4.2, §6). ExtractVersion MUST succeed iff
// Deserialize would also succeed on the same bytes, and MUST be cheap
// enough to call on every observation before committing to a full parse --
// this is the mandatory fast-path spec.md §4.4 step 1 relies on to avoid
// quadratic work under bursty fan-out.
type Codec interface {
	Serialize(nc NC) ([]byte, error)
	Deserialize(b []byte) (NC, error)
	ExtractVersion(b []byte) (Version, error)
	DebugJSONString(nc NC) string
}
