// Package fhe implements a mock-mode FHEVM: ciphertext handles, client-side
// encrypted inputs with proofs, a coprocessor that evaluates encrypted
// comparisons and sums, an ACL, and user decryption under a signed,
// time-boxed authorization.
//
// In mock mode the coprocessor holds the network secret key and evaluates
// operations on plaintexts sealed at rest. Handles, proofs, ACL checks and
// the decryption protocol behave as they would against a real network.
package fhe

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
)

// HandleVersion is stamped into the last byte of every handle.
const HandleVersion = 0

// computedIndex marks handles produced by the coprocessor rather than inputs.
const computedIndex = 0xff

// Type is the encrypted value type carried in a handle.
type Type uint8

const (
	TypeBool   Type = 0
	TypeUint32 Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "ebool"
	case TypeUint32:
		return "euint32"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Handle is the 32-byte on-ledger reference to an encrypted value.
//
// Layout: bytes [0,21) hash, [21] input index (0xff when computed),
// [22,30) chain id, [30] type, [31] version.
type Handle [32]byte

var ErrInvalidHandle = errors.New("invalid ciphertext handle")

func ParseHandle(s string) (Handle, error) {
	var h Handle
	if !strings.HasPrefix(s, "0x") {
		return h, fmt.Errorf("%w: missing 0x prefix", ErrInvalidHandle)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil || len(raw) != len(h) {
		return h, fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	copy(h[:], raw)
	return h, nil
}

func (h Handle) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Handle) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Handle) UnmarshalText(b []byte) error {
	parsed, err := ParseHandle(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func (h Handle) IsZero() bool { return h == Handle{} }

func (h Handle) Type() Type { return Type(h[30]) }

func (h Handle) Index() uint8 { return h[21] }

func (h Handle) ChainID() uint64 { return binary.BigEndian.Uint64(h[22:30]) }

func stampHandle(digest []byte, index uint8, chainID uint64, t Type) Handle {
	var h Handle
	copy(h[:21], digest[:21])
	h[21] = index
	binary.BigEndian.PutUint64(h[22:30], chainID)
	h[30] = byte(t)
	h[31] = HandleVersion
	return h
}

// inputHandle derives the handle of the i-th ciphertext of an encrypted input.
func inputHandle(ct []byte, index uint8, contract, user chain.Address, chainID uint64, t Type) Handle {
	var cid [8]byte
	binary.BigEndian.PutUint64(cid[:], chainID)
	digest := chain.Keccak256([]byte("cogniseal/fhevm/input"), ct, contract[:], user[:], cid[:])
	return stampHandle(digest, index, chainID, t)
}

// computedHandle derives a fresh handle for an operation result.
func computedHandle(op string, chainID uint64, t Type, operands ...Handle) (Handle, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return Handle{}, fmt.Errorf("read salt: %w", err)
	}
	parts := [][]byte{[]byte("cogniseal/fhevm/op/" + op), salt}
	for _, o := range operands {
		parts = append(parts, o[:])
	}
	return stampHandle(chain.Keccak256(parts...), computedIndex, chainID, t), nil
}

// encodePlaintext packs a value as type byte + 4-byte big-endian value.
func encodePlaintext(t Type, v uint32) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(t)
	binary.BigEndian.PutUint32(buf[1:], v)
	return buf
}

func decodePlaintext(buf []byte) (Type, uint32, error) {
	if len(buf) != 5 {
		return 0, 0, fmt.Errorf("plaintext: want 5 bytes, got %d", len(buf))
	}
	return Type(buf[0]), binary.BigEndian.Uint32(buf[1:]), nil
}
