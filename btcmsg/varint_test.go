package btcmsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 252, 253, 0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000}
	for _, v := range values {
		encoded := WriteVarInt(v)
		decoded, n, err := ReadVarInt(encoded)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
		require.Equal(t, len(encoded), n)
	}
}

func TestVarIntRejectsNonCanonical(t *testing.T) {
	// 0xFD followed by a u16 that fits in a single byte is non-canonical.
	_, _, err := ReadVarInt([]byte{0xFD, 0x05, 0x00})
	require.Error(t, err)

	// 0xFE followed by a u32 that fits in a u16 is non-canonical.
	_, _, err = ReadVarInt([]byte{0xFE, 0xFF, 0xFF, 0x00, 0x00})
	require.Error(t, err)

	// 0xFF followed by a u64 that fits in a u32 is non-canonical.
	_, _, err = ReadVarInt([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestVarIntRejectsShortBuffers(t *testing.T) {
	_, _, err := ReadVarInt(nil)
	require.Error(t, err)

	_, _, err = ReadVarInt([]byte{0xFD, 0x01})
	require.Error(t, err)

	_, _, err = ReadVarInt([]byte{0xFE, 0x01, 0x02})
	require.Error(t, err)

	_, _, err = ReadVarInt([]byte{0xFF, 0x01, 0x02, 0x03})
	require.Error(t, err)
}
