package fhe

import (
	"context"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
)

var (
	ErrNotAllowed    = errors.New("caller is not allowed on ciphertext")
	ErrUnknownHandle = errors.New("unknown ciphertext handle")
	ErrTypeMismatch  = errors.New("ciphertext type mismatch")
)

// CiphertextStore persists sealed ciphertexts and the ACL that guards them.
type CiphertextStore interface {
	// PutCiphertext stores sealed under h. Storing the same handle twice is a no-op.
	PutCiphertext(ctx context.Context, h Handle, sealed []byte) error
	// GetCiphertext returns ErrUnknownHandle when h was never stored.
	GetCiphertext(ctx context.Context, h Handle) ([]byte, error)
	Allow(ctx context.Context, h Handle, account chain.Address) error
	IsAllowed(ctx context.Context, h Handle, account chain.Address) (bool, error)
}

// Coprocessor evaluates FHE operations on behalf of contracts.
type Coprocessor struct {
	chainID uint64
	netPriv [32]byte
	netPub  [32]byte
	atRest  cipher.AEAD
	store   CiphertextStore
	log     zerolog.Logger
}

// NewCoprocessor derives the network key pair and the at-rest key from
// masterKey. The same master key always yields the same network public key.
func NewCoprocessor(chainID uint64, masterKey []byte, store CiphertextStore) (*Coprocessor, error) {
	if len(masterKey) < 16 {
		return nil, errors.New("fhe master key must be at least 16 bytes")
	}
	c := &Coprocessor{
		chainID: chainID,
		store:   store,
		log:     log.With().Str("component", "fhe_coprocessor").Logger(),
	}
	copy(c.netPriv[:], chain.Keccak256([]byte("cogniseal/network-key"), masterKey))
	pub, err := curve25519.X25519(c.netPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive network key: %w", err)
	}
	copy(c.netPub[:], pub)

	aead, err := chacha20poly1305.NewX(chain.Keccak256([]byte("cogniseal/at-rest"), masterKey))
	if err != nil {
		return nil, fmt.Errorf("init at-rest cipher: %w", err)
	}
	c.atRest = aead
	return c, nil
}

func (c *Coprocessor) ChainID() uint64 { return c.chainID }

// NetworkKey is the X25519 public key clients encrypt inputs to.
func (c *Coprocessor) NetworkKey() [32]byte { return c.netPub }

// Instance returns the client view of this network.
func (c *Coprocessor) Instance() *Instance { return NewInstance(c.chainID, c.netPub) }

// VerifyInput checks that h is covered by proof, that the proof was signed by
// user for contract on this chain, and imports the ciphertext. The contract
// is granted access to h. Verifying the same input again is harmless.
func (c *Coprocessor) VerifyInput(ctx context.Context, h Handle, proof []byte, contract, user chain.Address) (Handle, error) {
	p, err := decodeProof(proof)
	if err != nil {
		return Handle{}, err
	}
	if chain.AddressFromPublicKey(p.walletKey) != user {
		return Handle{}, fmt.Errorf("%w: signer is not the sender", ErrInvalidProof)
	}
	if !ed25519.Verify(p.walletKey, proofDigest(contract, user, c.chainID, p.handles), p.signature) {
		return Handle{}, fmt.Errorf("%w: bad signature", ErrInvalidProof)
	}

	idx := -1
	for i, ph := range p.handles {
		if ph == h {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Handle{}, fmt.Errorf("%w: handle not in proof", ErrInvalidProof)
	}
	if h.ChainID() != c.chainID || int(h.Index()) != idx {
		return Handle{}, fmt.Errorf("%w: handle metadata", ErrInvalidProof)
	}
	ct := p.ciphertexts[idx]
	if inputHandle(ct, uint8(idx), contract, user, c.chainID, h.Type()) != h {
		return Handle{}, fmt.Errorf("%w: handle does not match ciphertext", ErrInvalidProof)
	}

	plain, ok := box.OpenAnonymous(nil, ct, &c.netPub, &c.netPriv)
	if !ok {
		return Handle{}, fmt.Errorf("%w: ciphertext not sealed to network key", ErrInvalidProof)
	}
	t, v, err := decodePlaintext(plain)
	if err != nil || t != h.Type() {
		return Handle{}, fmt.Errorf("%w: malformed plaintext", ErrInvalidProof)
	}

	if err := c.put(ctx, h, t, v); err != nil {
		return Handle{}, err
	}
	if err := c.store.Allow(ctx, h, contract); err != nil {
		return Handle{}, fmt.Errorf("grant input to contract: %w", err)
	}
	return h, nil
}

// TrivialEncrypt encrypts a public constant for use by contract.
func (c *Coprocessor) TrivialEncrypt(ctx context.Context, contract chain.Address, t Type, v uint32) (Handle, error) {
	h, err := computedHandle("trivial", c.chainID, t)
	if err != nil {
		return Handle{}, err
	}
	return h, c.emit(ctx, contract, h, t, v)
}

// Eq returns an encrypted bool: a == b.
func (c *Coprocessor) Eq(ctx context.Context, contract chain.Address, a, b Handle) (Handle, error) {
	ta, va, err := c.operand(ctx, contract, a)
	if err != nil {
		return Handle{}, err
	}
	tb, vb, err := c.operand(ctx, contract, b)
	if err != nil {
		return Handle{}, err
	}
	if ta != tb {
		return Handle{}, fmt.Errorf("%w: eq(%s, %s)", ErrTypeMismatch, ta, tb)
	}
	h, err := computedHandle("eq", c.chainID, TypeBool, a, b)
	if err != nil {
		return Handle{}, err
	}
	var out uint32
	if va == vb {
		out = 1
	}
	return h, c.emit(ctx, contract, h, TypeBool, out)
}

// Add returns a + b, wrapping at 2^32.
func (c *Coprocessor) Add(ctx context.Context, contract chain.Address, a, b Handle) (Handle, error) {
	ta, va, err := c.operand(ctx, contract, a)
	if err != nil {
		return Handle{}, err
	}
	tb, vb, err := c.operand(ctx, contract, b)
	if err != nil {
		return Handle{}, err
	}
	if ta != TypeUint32 || tb != TypeUint32 {
		return Handle{}, fmt.Errorf("%w: add(%s, %s)", ErrTypeMismatch, ta, tb)
	}
	h, err := computedHandle("add", c.chainID, TypeUint32, a, b)
	if err != nil {
		return Handle{}, err
	}
	return h, c.emit(ctx, contract, h, TypeUint32, va+vb)
}

// Select returns ifTrue when cond decrypts to true, otherwise ifFalse.
func (c *Coprocessor) Select(ctx context.Context, contract chain.Address, cond, ifTrue, ifFalse Handle) (Handle, error) {
	tc, vc, err := c.operand(ctx, contract, cond)
	if err != nil {
		return Handle{}, err
	}
	if tc != TypeBool {
		return Handle{}, fmt.Errorf("%w: select condition is %s", ErrTypeMismatch, tc)
	}
	tt, vt, err := c.operand(ctx, contract, ifTrue)
	if err != nil {
		return Handle{}, err
	}
	tf, vf, err := c.operand(ctx, contract, ifFalse)
	if err != nil {
		return Handle{}, err
	}
	if tt != tf {
		return Handle{}, fmt.Errorf("%w: select(%s, %s)", ErrTypeMismatch, tt, tf)
	}
	h, err := computedHandle("select", c.chainID, tt, cond, ifTrue, ifFalse)
	if err != nil {
		return Handle{}, err
	}
	out := vf
	if vc != 0 {
		out = vt
	}
	return h, c.emit(ctx, contract, h, tt, out)
}

// Allow lets contract share h with account. contract must itself be allowed.
func (c *Coprocessor) Allow(ctx context.Context, contract chain.Address, h Handle, account chain.Address) error {
	if err := c.requireAllowed(ctx, contract, h); err != nil {
		return err
	}
	return c.store.Allow(ctx, h, account)
}

func (c *Coprocessor) IsAllowed(ctx context.Context, h Handle, account chain.Address) (bool, error) {
	return c.store.IsAllowed(ctx, h, account)
}

// OracleDecrypt reveals h to the contract that holds it. Only ledger code
// calls this; user-facing decryption goes through UserDecrypt.
func (c *Coprocessor) OracleDecrypt(ctx context.Context, contract chain.Address, h Handle) (uint32, error) {
	_, v, err := c.operand(ctx, contract, h)
	return v, err
}

func (c *Coprocessor) operand(ctx context.Context, contract chain.Address, h Handle) (Type, uint32, error) {
	if err := c.requireAllowed(ctx, contract, h); err != nil {
		return 0, 0, err
	}
	return c.load(ctx, h)
}

func (c *Coprocessor) requireAllowed(ctx context.Context, account chain.Address, h Handle) error {
	ok, err := c.store.IsAllowed(ctx, h, account)
	if err != nil {
		return fmt.Errorf("check acl: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrNotAllowed, account, h)
	}
	return nil
}

// emit stores a computed result and grants it to the contract that produced it.
func (c *Coprocessor) emit(ctx context.Context, contract chain.Address, h Handle, t Type, v uint32) error {
	if err := c.put(ctx, h, t, v); err != nil {
		return err
	}
	if err := c.store.Allow(ctx, h, contract); err != nil {
		return fmt.Errorf("grant result: %w", err)
	}
	return nil
}

func (c *Coprocessor) put(ctx context.Context, h Handle, t Type, v uint32) error {
	nonce := make([]byte, c.atRest.NonceSize(), c.atRest.NonceSize()+5+c.atRest.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("read nonce: %w", err)
	}
	sealed := c.atRest.Seal(nonce, nonce, encodePlaintext(t, v), h[:])
	if err := c.store.PutCiphertext(ctx, h, sealed); err != nil {
		return fmt.Errorf("store ciphertext %s: %w", h, err)
	}
	return nil
}

func (c *Coprocessor) load(ctx context.Context, h Handle) (Type, uint32, error) {
	sealed, err := c.store.GetCiphertext(ctx, h)
	if err != nil {
		return 0, 0, err
	}
	ns := c.atRest.NonceSize()
	if len(sealed) < ns {
		return 0, 0, fmt.Errorf("ciphertext %s is truncated", h)
	}
	plain, err := c.atRest.Open(nil, sealed[:ns], sealed[ns:], h[:])
	if err != nil {
		c.log.Error().Str("handle", h.String()).Msg("At-rest ciphertext failed authentication")
		return 0, 0, fmt.Errorf("open ciphertext %s: %w", h, err)
	}
	t, v, err := decodePlaintext(plain)
	if err != nil {
		return 0, 0, err
	}
	if t != h.Type() {
		return 0, 0, fmt.Errorf("%w: stored %s under %s handle", ErrTypeMismatch, t, h.Type())
	}
	return t, v, nil
}

// MemoryStore is an in-process CiphertextStore.
type MemoryStore struct {
	mu  sync.RWMutex
	cts map[Handle][]byte
	acl map[Handle]map[chain.Address]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cts: make(map[Handle][]byte),
		acl: make(map[Handle]map[chain.Address]struct{}),
	}
}

func (m *MemoryStore) PutCiphertext(_ context.Context, h Handle, sealed []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cts[h]; !ok {
		m.cts[h] = append([]byte(nil), sealed...)
	}
	return nil
}

func (m *MemoryStore) GetCiphertext(_ context.Context, h Handle) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ct, ok := m.cts[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return ct, nil
}

func (m *MemoryStore) Allow(_ context.Context, h Handle, account chain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.acl[h]
	if !ok {
		set = make(map[chain.Address]struct{})
		m.acl[h] = set
	}
	set[account] = struct{}{}
	return nil
}

func (m *MemoryStore) IsAllowed(_ context.Context, h Handle, account chain.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.acl[h][account]
	return ok, nil
}
