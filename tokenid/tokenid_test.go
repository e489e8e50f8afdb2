package tokenid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []TokenId{
		Ft("contract.near"),
		Nft("nft.near", "token-1"),
		Mt("mt.near", "42"),
	}

	for _, tc := range cases {
		encoded := tc.String()
		decoded, err := Parse(encoded)
		require.NoError(t, err)
		require.Equal(t, tc, decoded)
	}
}

func TestRejectsOversizedID(t *testing.T) {
	over := strings.Repeat("a", 128)
	_, err := Parse("nep171:c.near:" + over)
	require.Error(t, err)

	_, err = Parse("nep245:c.near:" + strings.Repeat("a", maxIDLen))
	require.NoError(t, err)
}

func TestTotalOrder(t *testing.T) {
	a := Ft("a.near")
	b := Ft("b.near")
	nft := Nft("a.near", "1")

	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.True(t, a.Less(nft))
}

func TestParseRejectsUnknownTag(t *testing.T) {
	_, err := Parse("nep999:c.near")
	require.Error(t, err)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse("nep141")
	require.Error(t, err)
}
