// Package chain holds the primitive types shared by the ledger, the FHE
// coprocessor and the client: addresses, 32-byte words and keccak hashing.
package chain

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidHash    = errors.New("invalid 32-byte hex value")
)

// Address is a 20-byte account identifier.
type Address [20]byte

// ZeroAddress is the unset address.
var ZeroAddress Address

// AddressFromPublicKey derives an account address from a wallet's ed25519
// public key: the last 20 bytes of keccak256(pubkey).
func AddressFromPublicKey(pub ed25519.PublicKey) Address {
	var a Address
	copy(a[:], Keccak256(pub)[12:])
	return a
}

// ParseAddress parses a 0x-prefixed 40 hex character address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := decodeHex(s, len(a))
	if err != nil {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hash is a 32-byte word: transaction hashes, event topics.
type Hash [32]byte

func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := decodeHex(s, len(h))
	if err != nil {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Uint64 reads the word as a big-endian uint256 truncated to 64 bits.
func (h Hash) Uint64() uint64 {
	return binary.BigEndian.Uint64(h[24:])
}

// Address reads the word as a left-padded address.
func (h Hash) Address() Address {
	var a Address
	copy(a[:], h[12:])
	return a
}

// Keccak256 hashes the concatenation of data with legacy keccak-256.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash is Keccak256 returning a Hash.
func Keccak256Hash(data ...[]byte) Hash {
	var h Hash
	copy(h[:], Keccak256(data...))
	return h
}

// EventID returns topic0 for an event signature such as
// "AnswersSubmitted(uint256,uint256,address,uint256)".
func EventID(signature string) Hash {
	return Keccak256Hash([]byte(signature))
}

// Uint64Topic encodes n as a uint256 topic.
func Uint64Topic(n uint64) Hash {
	var h Hash
	binary.BigEndian.PutUint64(h[24:], n)
	return h
}

// AddressTopic encodes a as a left-padded topic.
func AddressTopic(a Address) Hash {
	var h Hash
	copy(h[12:], a[:])
	return h
}

// HexBytes is a byte slice carried as 0x-prefixed hex in JSON.
type HexBytes []byte

func (b HexBytes) String() string { return "0x" + hex.EncodeToString(b) }

func (b HexBytes) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *HexBytes) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(string(text), "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex bytes: %w", err)
	}
	*b = raw
	return nil
}

func decodeHex(s string, size int) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, errors.New("missing 0x prefix")
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, err
	}
	if len(raw) != size {
		return nil, fmt.Errorf("want %d bytes, got %d", size, len(raw))
	}
	return raw, nil
}
