package stacks

import (
	"crypto/sha256"
	"fmt"
	"strings"

	xerrors "github.com/StacksTasker/x402-stacks-agent-console/internal/errors"
)

// alphabet is the Crockford base32 alphabet used by c32check (no I, L, O, U).
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Network selects which address encoding a principal uses.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Single-sig and multi-sig version bytes for both networks.
const (
	VersionMainnetP2PKH byte = 22 // addresses starting "SP"
	VersionMainnetP2SH  byte = 20 // addresses starting "SM"
	VersionTestnetP2PKH byte = 26 // addresses starting "ST"
	VersionTestnetP2SH  byte = 21 // addresses starting "SN"
)

var decodeMap = buildDecodeMap()

func buildDecodeMap() [256]int8 {
	var m [256]int8
	for i := range m {
		m[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = int8(i)
		m[strings.ToLower(alphabet)[i]] = int8(i)
	}
	// Homoglyphs accepted on decode.
	m['O'], m['o'] = 0, 0
	m['L'], m['l'] = 1, 1
	m['I'], m['i'] = 1, 1
	return m
}

// c32Encode encodes raw bytes as a c32 string. One leading zero byte maps to
// one leading '0' character.
func c32Encode(data []byte) string {
	var sb []byte
	carry := 0
	carryBits := 0
	for i := len(data) - 1; i >= 0; i-- {
		combined := int(data[i])<<carryBits | carry
		sb = append(sb, alphabet[combined&0x1f])
		carry = combined >> 5
		carryBits += 3
		if carryBits >= 5 {
			sb = append(sb, alphabet[carry&0x1f])
			carry >>= 5
			carryBits -= 5
		}
	}
	if carryBits > 0 {
		sb = append(sb, alphabet[carry])
	}

	// The digits were produced least-significant first.
	for i, j := 0, len(sb)-1; i < j; i, j = i+1, j-1 {
		sb[i], sb[j] = sb[j], sb[i]
	}

	out := strings.TrimLeft(string(sb), "0")
	zeros := 0
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}
	return strings.Repeat("0", zeros) + out
}

// c32Decode decodes a c32 string back into raw bytes.
func c32Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	zeros := 0
	for zeros < len(s) && decodeMap[s[zeros]] == 0 {
		zeros++
	}

	var out []byte
	carry := 0
	carryBits := 0
	for i := len(s) - 1; i >= 0; i-- {
		v := decodeMap[s[i]]
		if v < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("invalid c32 character %q", s[i]))
		}
		carry |= int(v) << carryBits
		carryBits += 5
		for carryBits >= 8 {
			out = append(out, byte(carry&0xff))
			carry >>= 8
			carryBits -= 8
		}
	}
	if carryBits > 0 && carry > 0 {
		out = append(out, byte(carry))
	}

	// The bytes were produced least-significant first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	trimmed := 0
	for trimmed < len(out) && out[trimmed] == 0 {
		trimmed++
	}
	out = out[trimmed:]

	result := make([]byte, zeros+len(out))
	copy(result[zeros:], out)
	return result, nil
}

// checksum computes the 4-byte c32check checksum over version byte plus payload.
func checksum(version byte, data []byte) []byte {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, version)
	buf = append(buf, data...)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	return second[:4]
}
