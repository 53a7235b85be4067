package ncconfig

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressedCodec wraps another Codec and zstd-compresses its output body,
// keeping the version header uncompressed and in place. ExtractVersion
// decompresses the payload so the inner codec can check the header
// against the version the body carries. Grounded on
// klauspost/compress, already a teacher dependency used there to shrink
// replication traffic.
type CompressedCodec struct {
	Inner Codec
}

var _ Codec = CompressedCodec{}

func (c CompressedCodec) Serialize(nc NC) ([]byte, error) {
	inner, err := c.Inner.Serialize(nc)
	if err != nil {
		return nil, err
	}
	if len(inner) < versionHeaderSize {
		return nil, ErrSerialize
	}
	header, body := inner[:versionHeaderSize], inner[versionHeaderSize:]

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(body, nil)

	out := make([]byte, 0, versionHeaderSize+len(compressed))
	out = append(out, header...)
	out = append(out, compressed...)
	return out, nil
}

func (c CompressedCodec) Deserialize(b []byte) (NC, error) {
	if len(b) < versionHeaderSize {
		return NC{}, ErrBadMsg
	}
	header, compressed := b[:versionHeaderSize], b[versionHeaderSize:]

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return NC{}, fmt.Errorf("%w: %v", ErrBadMsg, err)
	}
	defer dec.Close()
	body, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return NC{}, fmt.Errorf("%w: %v", ErrBadMsg, err)
	}

	return c.Inner.Deserialize(append(append([]byte{}, header...), body...))
}

func (c CompressedCodec) ExtractVersion(b []byte) (Version, error) {
	if len(b) < versionHeaderSize {
		return EmptyVersion, ErrBadMsg
	}
	// The inner codec checks the header against the version embedded in
	// the body, so the body is decompressed first; a header that
	// disagrees with the body is then rejected here as in Deserialize.
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return EmptyVersion, fmt.Errorf("%w: %v", ErrBadMsg, err)
	}
	defer dec.Close()
	body, err := dec.DecodeAll(b[versionHeaderSize:], nil)
	if err != nil {
		return EmptyVersion, fmt.Errorf("%w: %v", ErrBadMsg, err)
	}
	return c.Inner.ExtractVersion(append(append([]byte{}, b[:versionHeaderSize]...), body...))
}

func (c CompressedCodec) DebugJSONString(nc NC) string {
	return c.Inner.DebugJSONString(nc)
}
