package stacks

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestC32RoundTrip(t *testing.T) {
	cases := [][]byte{
		{0x01},
		{0x00, 0x01},
		{0x00, 0x00, 0x00},
		{0xff, 0xff, 0xff, 0xff},
		{0xde, 0xad, 0xbe, 0xef, 0x00, 0x12, 0x34},
		bytes.Repeat([]byte{0xa5}, 24),
	}
	for _, input := range cases {
		encoded := c32Encode(input)
		decoded, err := c32Decode(encoded)
		require.NoError(t, err, "input %x", input)
		assert.Equal(t, input, decoded, "input %x encoded as %q", input, encoded)
	}
}

func TestC32DecodeRejectsInvalidCharacters(t *testing.T) {
	// U is excluded from the Crockford alphabet.
	_, err := c32Decode("ABCU")
	assert.Error(t, err)
}

func TestC32DecodeAcceptsHomoglyphsAndCase(t *testing.T) {
	reference, err := c32Decode("10")
	require.NoError(t, err)

	for _, variant := range []string{"1O", "lo", "IO"} {
		decoded, err := c32Decode(variant)
		require.NoError(t, err, "variant %q", variant)
		assert.Equal(t, reference, decoded, "variant %q", variant)
	}
}

func TestEncodeAddressPrefixes(t *testing.T) {
	var hash [Hash160Size]byte
	copy(hash[:], bytes.Repeat([]byte{0x37}, Hash160Size))

	assert.True(t, strings.HasPrefix(EncodeAddress(VersionMainnetP2PKH, hash), "SP"))
	assert.True(t, strings.HasPrefix(EncodeAddress(VersionTestnetP2PKH, hash), "ST"))
	assert.True(t, strings.HasPrefix(EncodeAddress(VersionMainnetP2SH, hash), "SM"))
	assert.True(t, strings.HasPrefix(EncodeAddress(VersionTestnetP2SH, hash), "SN"))
}

func TestDecodeAddressRoundTrip(t *testing.T) {
	hashes := [][Hash160Size]byte{
		{},
		{0x00, 0x01, 0x02, 0x03},
	}
	copy(hashes[0][:], bytes.Repeat([]byte{0xc4}, Hash160Size))

	for _, hash := range hashes {
		for _, version := range []byte{VersionMainnetP2PKH, VersionTestnetP2PKH, VersionMainnetP2SH, VersionTestnetP2SH} {
			addr := EncodeAddress(version, hash)
			gotVersion, gotHash, err := DecodeAddress(addr)
			require.NoError(t, err, "address %q", addr)
			assert.Equal(t, version, gotVersion)
			assert.Equal(t, hash, gotHash)
		}
	}
}

func TestDecodeAddressRejectsCorruption(t *testing.T) {
	var hash [Hash160Size]byte
	copy(hash[:], bytes.Repeat([]byte{0x5a}, Hash160Size))
	addr := EncodeAddress(VersionMainnetP2PKH, hash)

	// Swap one payload character for a different alphabet character.
	mid := len(addr) / 2
	replacement := byte('3')
	if addr[mid] == replacement {
		replacement = '7'
	}
	corrupted := addr[:mid] + string(replacement) + addr[mid+1:]

	_, _, err := DecodeAddress(corrupted)
	assert.Error(t, err)
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "S", "X123", "SPnothex!!"} {
		_, _, err := DecodeAddress(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestConvertAddressBetweenNetworks(t *testing.T) {
	var hash [Hash160Size]byte
	copy(hash[:], bytes.Repeat([]byte{0x11}, Hash160Size))
	mainnet := EncodeAddress(VersionMainnetP2PKH, hash)

	testnet, err := ConvertAddress(mainnet, NetworkTestnet)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(testnet, "ST"))

	// Converting back restores the original encoding.
	back, err := ConvertAddress(testnet, NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, mainnet, back)

	// Converting to the network it is already on is a no-op.
	same, err := ConvertAddress(mainnet, NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, mainnet, same)
}

func TestConvertAddressRejectsUnknownNetwork(t *testing.T) {
	var hash [Hash160Size]byte
	addr := EncodeAddress(VersionMainnetP2PKH, hash)

	_, err := ConvertAddress(addr, Network("devnet"))
	assert.Error(t, err)
}

func TestVariants(t *testing.T) {
	var hash [Hash160Size]byte
	copy(hash[:], bytes.Repeat([]byte{0x2b}, Hash160Size))
	testnetAddr := EncodeAddress(VersionTestnetP2PKH, hash)

	mainnet, testnet, err := Variants(testnetAddr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mainnet, "SP"))
	assert.Equal(t, testnetAddr, testnet)
}
