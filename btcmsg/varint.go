package btcmsg

import (
	"encoding/binary"
	"fmt"
)

// Compact-size prefix bytes, per the classic Bitcoin varint encoding
// described in §4.2: <0xFD single byte; 0xFD+u16 LE; 0xFE+u32 LE;
// 0xFF+u64 LE.
const (
	varIntPrefix16 = 0xFD
	varIntPrefix32 = 0xFE
	varIntPrefix64 = 0xFF
)

// ReadVarInt decodes a compact-size integer from b, returning the value, the
// number of bytes consumed, and an error. Non-canonical encodings (using a
// wider prefix than the value requires, or a buffer too short to hold the
// prefix's width) are rejected rather than silently accepted, per §4.2/§8.
func ReadVarInt(b []byte) (value uint64, consumed int, err error) {
	if len(b) < 1 {
		return 0, 0, fmt.Errorf("btcmsg: empty varint buffer")
	}

	switch b[0] {
	case varIntPrefix16:
		if len(b) < 3 {
			return 0, 0, fmt.Errorf("btcmsg: truncated u16 varint")
		}
		v := binary.LittleEndian.Uint16(b[1:3])
		if v < varIntPrefix16 {
			return 0, 0, fmt.Errorf("btcmsg: non-canonical u16 varint encodes %d", v)
		}
		return uint64(v), 3, nil

	case varIntPrefix32:
		if len(b) < 5 {
			return 0, 0, fmt.Errorf("btcmsg: truncated u32 varint")
		}
		v := binary.LittleEndian.Uint32(b[1:5])
		if v <= 0xFFFF {
			return 0, 0, fmt.Errorf("btcmsg: non-canonical u32 varint encodes %d", v)
		}
		return uint64(v), 5, nil

	case varIntPrefix64:
		if len(b) < 9 {
			return 0, 0, fmt.Errorf("btcmsg: truncated u64 varint")
		}
		v := binary.LittleEndian.Uint64(b[1:9])
		if v <= 0xFFFFFFFF {
			return 0, 0, fmt.Errorf("btcmsg: non-canonical u64 varint encodes %d", v)
		}
		return v, 9, nil

	default:
		return uint64(b[0]), 1, nil
	}
}

// WriteVarInt encodes v in its minimal compact-size form.
func WriteVarInt(v uint64) []byte {
	switch {
	case v < varIntPrefix16:
		return []byte{byte(v)}
	case v <= 0xFFFF:
		out := make([]byte, 3)
		out[0] = varIntPrefix16
		binary.LittleEndian.PutUint16(out[1:], uint16(v))
		return out
	case v <= 0xFFFFFFFF:
		out := make([]byte, 5)
		out[0] = varIntPrefix32
		binary.LittleEndian.PutUint32(out[1:], uint32(v))
		return out
	default:
		out := make([]byte, 9)
		out[0] = varIntPrefix64
		binary.LittleEndian.PutUint64(out[1:], v)
		return out
	}
}

// ReadVarBytes reads a varint-prefixed byte string, as used for the
// message-length prefix in the compact and full Bitcoin signing standards
// (§4.2c, §4.2d).
func ReadVarBytes(b []byte) (data []byte, consumed int, err error) {
	length, n, err := ReadVarInt(b)
	if err != nil {
		return nil, 0, err
	}
	if uint64(len(b)-n) < length {
		return nil, 0, fmt.Errorf("btcmsg: varbytes length %d exceeds buffer", length)
	}
	return b[n : n+int(length)], n + int(length), nil
}
