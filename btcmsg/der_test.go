package btcmsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// canonicalDER builds a minimal canonical DER signature for given r, s
// byte strings, prefixing a 0x00 disambiguation byte when the high bit is
// set, as real DER signatures do.
func canonicalDER(r, s []byte) []byte {
	encodeInt := func(v []byte) []byte {
		if len(v) > 0 && v[0]&0x80 != 0 {
			v = append([]byte{0x00}, v...)
		}
		out := []byte{derIntegerTag, byte(len(v))}
		return append(out, v...)
	}

	rEnc := encodeInt(r)
	sEnc := encodeInt(s)
	body := append(append([]byte{}, rEnc...), sEnc...)

	out := []byte{derSequenceTag, byte(len(body))}
	return append(out, body...)
}

func TestParseDERStrictAcceptsCanonical(t *testing.T) {
	sig := canonicalDER([]byte{0x01, 0x02, 0x03}, []byte{0x04, 0x05})
	parsed, err := ParseDERStrict(sig)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, parsed.R)
	require.Equal(t, []byte{0x04, 0x05}, parsed.S)
}

func TestParseDERStrictRejectsTrailingBytes(t *testing.T) {
	sig := canonicalDER([]byte{0x01}, []byte{0x02})
	sig = append(sig, 0xFF)
	_, err := ParseDERStrict(sig)
	require.Error(t, err)
}

func TestParseDERStrictRejectsWrongSequenceTag(t *testing.T) {
	sig := canonicalDER([]byte{0x01}, []byte{0x02})
	sig[0] = 0x31
	_, err := ParseDERStrict(sig)
	require.Error(t, err)
}

func TestParseDERStrictRejectsWrongIntegerTag(t *testing.T) {
	sig := canonicalDER([]byte{0x01}, []byte{0x02})
	// First INTEGER tag sits right after the sequence length byte.
	sig[2] = 0x03
	_, err := ParseDERStrict(sig)
	require.Error(t, err)
}

func TestParseDERStrictRejectsLongFormForShortLength(t *testing.T) {
	// Manually build a sequence whose length is encoded in long form for
	// a length <= 127, which is non-canonical.
	body := canonicalDER([]byte{0x01}, []byte{0x02})[2:]
	sig := []byte{derSequenceTag, 0x81, byte(len(body))}
	sig = append(sig, body...)
	_, err := ParseDERStrict(sig)
	require.Error(t, err)
}

func TestParseDERStrictRejectsLeadingZeroLongForm(t *testing.T) {
	body := make([]byte, 200)
	sig := []byte{derSequenceTag, 0x82, 0x00, 0xC8}
	sig = append(sig, body...)
	_, err := ParseDERStrict(sig)
	require.Error(t, err)
}

func TestParseDERStrictRejectsLengthOverrun(t *testing.T) {
	sig := canonicalDER([]byte{0x01}, []byte{0x02})
	sig[1] = byte(len(sig)) // claim a longer sequence than actually present
	_, err := ParseDERStrict(sig)
	require.Error(t, err)
}

func TestParseDERRelaxedToleratesTrailingBytes(t *testing.T) {
	sig := canonicalDER([]byte{0x01}, []byte{0x02})
	sig = append(sig, 0xFF)
	_, err := ParseDERRelaxed(sig)
	require.NoError(t, err)
}
