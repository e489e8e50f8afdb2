package btcmsg

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/require"

	"github.com/defuse-protocol/intents-settle/crypto"
)

func encodeLegacy(t *testing.T, version byte, hash [20]byte) string {
	t.Helper()
	body := append([]byte{version}, hash[:]...)
	checksum := crypto.Dsha256(body)
	full := append(body, checksum[:4]...)
	return base58.Encode(full)
}

func encodeSegwit(t *testing.T, version byte, program []byte) string {
	t.Helper()
	converted, err := bech32.ConvertBits(program, 8, 5, true)
	require.NoError(t, err)
	data := append([]byte{version}, converted...)

	var addr string
	if version == 0 {
		addr, err = bech32.Encode(segwitHRP, data)
	} else {
		addr, err = bech32.EncodeM(segwitHRP, data)
	}
	require.NoError(t, err)
	return addr
}

func TestParseAddressLegacyP2PKH(t *testing.T) {
	var hash [20]byte
	hash[0] = 0xAB
	addrStr := encodeLegacy(t, mainnetP2PKHVersion, hash)

	addr, err := ParseAddress(addrStr)
	require.NoError(t, err)
	require.Equal(t, AddressP2PKH, addr.Kind)
	require.Equal(t, hash, addr.Hash160)
}

func TestParseAddressLegacyRejectsTestnetVersion(t *testing.T) {
	var hash [20]byte
	addrStr := encodeLegacy(t, 0x6F, hash) // testnet P2PKH version byte
	_, err := ParseAddress(addrStr)
	require.Error(t, err)
}

func TestParseAddressLegacyRejectsBadChecksum(t *testing.T) {
	var hash [20]byte
	addrStr := encodeLegacy(t, mainnetP2PKHVersion, hash)
	mutated := []byte(addrStr)
	mutated[len(mutated)-1]++
	_, err := ParseAddress(string(mutated))
	require.Error(t, err)
}

func TestParseAddressSegwitP2WPKH(t *testing.T) {
	var hash [20]byte
	hash[5] = 0x42
	addrStr := encodeSegwit(t, 0, hash[:])

	addr, err := ParseAddress(addrStr)
	require.NoError(t, err)
	require.True(t, addr.IsP2WPKH())
	require.Equal(t, hash, addr.Hash160)
}

func TestParseAddressSegwitP2WSH(t *testing.T) {
	program := make([]byte, 32)
	program[0] = 0x01
	addrStr := encodeSegwit(t, 0, program)

	addr, err := ParseAddress(addrStr)
	require.NoError(t, err)
	require.True(t, addr.IsP2WSH())
}

func TestParseAddressRejectsNonBcHRP(t *testing.T) {
	var hash [20]byte
	converted, err := bech32.ConvertBits(hash[:], 8, 5, true)
	require.NoError(t, err)
	data := append([]byte{0}, converted...)

	for _, hrp := range []string{"tb", "bcrt"} {
		addrStr, err := bech32.Encode(hrp, data)
		require.NoError(t, err)
		_, err = ParseAddress(addrStr)
		require.Error(t, err)
	}
}

func TestParseAddressRejectsWitnessV17Plus(t *testing.T) {
	program := make([]byte, 20)
	addrStr := encodeSegwit(t, 17, program)
	_, err := ParseAddress(addrStr)
	require.Error(t, err)
}

func TestParseAddressRejectsWrongEncodingForVersion(t *testing.T) {
	// Witness v0 must use bech32 (checksum const 1), not bech32m.
	converted, err := bech32.ConvertBits(make([]byte, 20), 8, 5, true)
	require.NoError(t, err)
	data := append([]byte{0}, converted...)
	addrStr, err := bech32.EncodeM(segwitHRP, data)
	require.NoError(t, err)
	_, err = ParseAddress(addrStr)
	require.Error(t, err)
}
