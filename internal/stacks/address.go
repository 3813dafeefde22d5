package stacks

import (
	"crypto/subtle"
	"fmt"
	"strings"

	xerrors "github.com/StacksTasker/x402-stacks-agent-console/internal/errors"
)

// Hash160Size is the size of the identity hash inside every principal address.
const Hash160Size = 20

// EncodeAddress produces the c32check principal address for a version byte
// and identity hash.
func EncodeAddress(version byte, hash [Hash160Size]byte) string {
	payload := make([]byte, 0, Hash160Size+4)
	payload = append(payload, hash[:]...)
	payload = append(payload, checksum(version, hash[:])...)
	return "S" + string(alphabet[version]) + c32Encode(payload)
}

// DecodeAddress parses a principal address, verifying its checksum.
func DecodeAddress(addr string) (byte, [Hash160Size]byte, error) {
	var hash [Hash160Size]byte
	addr = strings.TrimSpace(addr)
	if len(addr) < 3 || (addr[0] != 'S' && addr[0] != 's') {
		return 0, hash, xerrors.New(xerrors.CodeInvalidArgument, "not a principal address")
	}
	version := decodeMap[addr[1]]
	if version < 0 {
		return 0, hash, xerrors.New(xerrors.CodeInvalidArgument, "invalid address version character")
	}
	payload, err := c32Decode(addr[2:])
	if err != nil {
		return 0, hash, err
	}
	if len(payload) != Hash160Size+4 {
		return 0, hash, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("address payload is %d bytes, want %d", len(payload), Hash160Size+4))
	}
	data := payload[:Hash160Size]
	want := checksum(byte(version), data)
	if subtle.ConstantTimeCompare(want, payload[Hash160Size:]) != 1 {
		return 0, hash, xerrors.New(xerrors.CodeInvalidArgument, "address checksum mismatch")
	}
	copy(hash[:], data)
	return byte(version), hash, nil
}

// NetworkOf reports which network an address version byte belongs to.
func NetworkOf(version byte) (Network, error) {
	switch version {
	case VersionMainnetP2PKH, VersionMainnetP2SH:
		return NetworkMainnet, nil
	case VersionTestnetP2PKH, VersionTestnetP2SH:
		return NetworkTestnet, nil
	default:
		return "", xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unknown address version %d", version))
	}
}

// versionFor maps a version byte onto its counterpart for the target network,
// preserving single-sig vs multi-sig.
func versionFor(version byte, network Network) (byte, error) {
	switch network {
	case NetworkMainnet:
		switch version {
		case VersionTestnetP2PKH, VersionMainnetP2PKH:
			return VersionMainnetP2PKH, nil
		case VersionTestnetP2SH, VersionMainnetP2SH:
			return VersionMainnetP2SH, nil
		}
	case NetworkTestnet:
		switch version {
		case VersionMainnetP2PKH, VersionTestnetP2PKH:
			return VersionTestnetP2PKH, nil
		case VersionMainnetP2SH, VersionTestnetP2SH:
			return VersionTestnetP2SH, nil
		}
	default:
		return 0, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unknown network %q", network))
	}
	return 0, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unknown address version %d", version))
}

// ConvertAddress re-encodes the same identity hash under the target
// network's version byte.
func ConvertAddress(addr string, network Network) (string, error) {
	version, hash, err := DecodeAddress(addr)
	if err != nil {
		return "", err
	}
	target, err := versionFor(version, network)
	if err != nil {
		return "", err
	}
	return EncodeAddress(target, hash), nil
}

// Variants returns the mainnet and testnet encodings of one address.
func Variants(addr string) (mainnet string, testnet string, err error) {
	mainnet, err = ConvertAddress(addr, NetworkMainnet)
	if err != nil {
		return "", "", err
	}
	testnet, err = ConvertAddress(addr, NetworkTestnet)
	if err != nil {
		return "", "", err
	}
	return mainnet, testnet, nil
}
