package fhe

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"golang.org/x/crypto/nacl/box"
)

const proofVersion = 1

// maxInputs bounds the ciphertexts carried by one input proof.
const maxInputs = 255

var (
	ErrInvalidProof  = errors.New("invalid input proof")
	ErrTooManyInputs = errors.New("too many values in one encrypted input")
)

// Instance is the client-side view of an FHE network: the chain it serves
// and the public key inputs are encrypted to.
type Instance struct {
	ChainID    uint64
	NetworkKey [32]byte
}

// NewInstance builds an Instance from the network parameters the node publishes.
func NewInstance(chainID uint64, networkKey [32]byte) *Instance {
	return &Instance{ChainID: chainID, NetworkKey: networkKey}
}

// EncryptedInput accumulates plaintexts bound to one (contract, user) pair.
type EncryptedInput struct {
	inst     *Instance
	contract chain.Address
	user     chain.Address
	values   []typedValue
}

type typedValue struct {
	t Type
	v uint32
}

// EncryptedOutput is what a transaction carries: one handle per value and a
// single proof covering all of them.
type EncryptedOutput struct {
	Handles    []Handle
	InputProof []byte
}

// CreateEncryptedInput starts an input scoped to contract and user. Proofs
// produced from it are rejected for any other contract or sender.
func (i *Instance) CreateEncryptedInput(contract, user chain.Address) *EncryptedInput {
	return &EncryptedInput{inst: i, contract: contract, user: user}
}

func (in *EncryptedInput) Add32(v uint32) *EncryptedInput {
	in.values = append(in.values, typedValue{t: TypeUint32, v: v})
	return in
}

func (in *EncryptedInput) AddBool(b bool) *EncryptedInput {
	var v uint32
	if b {
		v = 1
	}
	in.values = append(in.values, typedValue{t: TypeBool, v: v})
	return in
}

// Encrypt seals every value to the network key and signs the proof with the
// user's wallet key.
func (in *EncryptedInput) Encrypt(key ed25519.PrivateKey) (*EncryptedOutput, error) {
	if len(in.values) == 0 {
		return nil, errors.New("encrypted input is empty")
	}
	if len(in.values) > maxInputs {
		return nil, ErrTooManyInputs
	}
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok || chain.AddressFromPublicKey(pub) != in.user {
		return nil, errors.New("signing key does not match input user")
	}

	handles := make([]Handle, len(in.values))
	cts := make([][]byte, len(in.values))
	for idx, tv := range in.values {
		ct, err := box.SealAnonymous(nil, encodePlaintext(tv.t, tv.v), &in.inst.NetworkKey, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("seal value %d: %w", idx, err)
		}
		cts[idx] = ct
		handles[idx] = inputHandle(ct, uint8(idx), in.contract, in.user, in.inst.ChainID, tv.t)
	}

	sig := ed25519.Sign(key, proofDigest(in.contract, in.user, in.inst.ChainID, handles))
	return &EncryptedOutput{
		Handles:    handles,
		InputProof: encodeProof(pub, sig, handles, cts),
	}, nil
}

// inputProof is the decoded form of a proof.
type inputProof struct {
	walletKey   ed25519.PublicKey
	signature   []byte
	handles     []Handle
	ciphertexts [][]byte
}

// Wire format: version | count | wallet key (32) | signature (64) |
// count × (handle (32) | ciphertext length (2) | ciphertext).
func encodeProof(pub ed25519.PublicKey, sig []byte, handles []Handle, cts [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(proofVersion)
	buf.WriteByte(byte(len(handles)))
	buf.Write(pub)
	buf.Write(sig)
	for i, h := range handles {
		buf.Write(h[:])
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(cts[i])))
		buf.Write(l[:])
		buf.Write(cts[i])
	}
	return buf.Bytes()
}

func decodeProof(raw []byte) (*inputProof, error) {
	const header = 2 + ed25519.PublicKeySize + ed25519.SignatureSize
	if len(raw) < header {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidProof)
	}
	if raw[0] != proofVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidProof, raw[0])
	}
	count := int(raw[1])
	p := &inputProof{
		walletKey: ed25519.PublicKey(raw[2 : 2+ed25519.PublicKeySize]),
		signature: raw[2+ed25519.PublicKeySize : header],
	}
	rest := raw[header:]
	for i := 0; i < count; i++ {
		if len(rest) < 34 {
			return nil, fmt.Errorf("%w: truncated entry %d", ErrInvalidProof, i)
		}
		var h Handle
		copy(h[:], rest[:32])
		n := int(binary.BigEndian.Uint16(rest[32:34]))
		rest = rest[34:]
		if len(rest) < n {
			return nil, fmt.Errorf("%w: truncated ciphertext %d", ErrInvalidProof, i)
		}
		p.handles = append(p.handles, h)
		p.ciphertexts = append(p.ciphertexts, rest[:n])
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrInvalidProof)
	}
	return p, nil
}

func proofDigest(contract, user chain.Address, chainID uint64, handles []Handle) []byte {
	var cid [8]byte
	binary.BigEndian.PutUint64(cid[:], chainID)
	parts := [][]byte{[]byte("cogniseal/fhevm/input-proof/v1"), contract[:], user[:], cid[:]}
	for _, h := range handles {
		parts = append(parts, h[:])
	}
	return chain.Keccak256(parts...)
}

// FillInBlankValue maps a free-text answer to the 32-bit value that gets
// encrypted: the first four bytes of keccak256 of its UTF-8 bytes. No
// normalization is applied, so "Paris" and "paris " encode differently.
func FillInBlankValue(answer string) uint32 {
	return binary.BigEndian.Uint32(chain.Keccak256([]byte(answer))[:4])
}
