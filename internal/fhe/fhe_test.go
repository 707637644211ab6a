package fhe

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
)

const testChainID = 31337

var testContract = chain.MustParseAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")

type wallet struct {
	key  ed25519.PrivateKey
	addr chain.Address
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return wallet{key: key, addr: chain.AddressFromPublicKey(pub)}
}

func newCoprocessor(t *testing.T) *Coprocessor {
	t.Helper()
	c, err := NewCoprocessor(testChainID, []byte("test-master-key-0123456789"), NewMemoryStore())
	require.NoError(t, err)
	return c
}

// importValue encrypts v as user and verifies it for testContract.
func importValue(t *testing.T, c *Coprocessor, w wallet, v uint32) Handle {
	t.Helper()
	out, err := c.Instance().CreateEncryptedInput(testContract, w.addr).Add32(v).Encrypt(w.key)
	require.NoError(t, err)
	h, err := c.VerifyInput(context.Background(), out.Handles[0], out.InputProof, testContract, w.addr)
	require.NoError(t, err)
	return h
}

func TestNetworkKeyIsDeterministic(t *testing.T) {
	a := newCoprocessor(t)
	b := newCoprocessor(t)
	assert.Equal(t, a.NetworkKey(), b.NetworkKey())

	other, err := NewCoprocessor(testChainID, []byte("another-master-key-000000"), NewMemoryStore())
	require.NoError(t, err)
	assert.NotEqual(t, a.NetworkKey(), other.NetworkKey())

	_, err = NewCoprocessor(testChainID, []byte("short"), NewMemoryStore())
	assert.Error(t, err)
}

func TestEncryptedInputHandles(t *testing.T) {
	c := newCoprocessor(t)
	w := newWallet(t)

	out, err := c.Instance().CreateEncryptedInput(testContract, w.addr).Add32(7).AddBool(true).Encrypt(w.key)
	require.NoError(t, err)
	require.Len(t, out.Handles, 2)

	assert.Equal(t, TypeUint32, out.Handles[0].Type())
	assert.Equal(t, TypeBool, out.Handles[1].Type())
	assert.Equal(t, uint8(0), out.Handles[0].Index())
	assert.Equal(t, uint8(1), out.Handles[1].Index())
	assert.Equal(t, uint64(testChainID), out.Handles[0].ChainID())

	for _, h := range out.Handles {
		_, err := c.VerifyInput(context.Background(), h, out.InputProof, testContract, w.addr)
		require.NoError(t, err)
	}
}

func TestEncryptRejectsForeignKey(t *testing.T) {
	c := newCoprocessor(t)
	alice := newWallet(t)
	bob := newWallet(t)

	_, err := c.Instance().CreateEncryptedInput(testContract, alice.addr).Add32(1).Encrypt(bob.key)
	assert.Error(t, err)

	_, err = c.Instance().CreateEncryptedInput(testContract, alice.addr).Encrypt(alice.key)
	assert.Error(t, err)
}

func TestVerifyInputBinding(t *testing.T) {
	ctx := context.Background()
	c := newCoprocessor(t)
	alice := newWallet(t)
	bob := newWallet(t)
	otherContract := chain.MustParseAddress("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512")

	out, err := c.Instance().CreateEncryptedInput(testContract, alice.addr).Add32(3).Encrypt(alice.key)
	require.NoError(t, err)
	h := out.Handles[0]

	t.Run("wrong sender", func(t *testing.T) {
		_, err := c.VerifyInput(ctx, h, out.InputProof, testContract, bob.addr)
		assert.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("wrong contract", func(t *testing.T) {
		_, err := c.VerifyInput(ctx, h, out.InputProof, otherContract, alice.addr)
		assert.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("wrong chain", func(t *testing.T) {
		foreign, err := NewCoprocessor(1, []byte("test-master-key-0123456789"), NewMemoryStore())
		require.NoError(t, err)
		_, err = foreign.VerifyInput(ctx, h, out.InputProof, testContract, alice.addr)
		assert.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("handle not in proof", func(t *testing.T) {
		other, err := c.Instance().CreateEncryptedInput(testContract, alice.addr).Add32(3).Encrypt(alice.key)
		require.NoError(t, err)
		_, err = c.VerifyInput(ctx, other.Handles[0], out.InputProof, testContract, alice.addr)
		assert.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		tampered := append([]byte(nil), out.InputProof...)
		tampered[len(tampered)-1] ^= 0x01
		_, err := c.VerifyInput(ctx, h, tampered, testContract, alice.addr)
		assert.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := c.VerifyInput(ctx, h, out.InputProof[:40], testContract, alice.addr)
		assert.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("valid and idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			got, err := c.VerifyInput(ctx, h, out.InputProof, testContract, alice.addr)
			require.NoError(t, err)
			assert.Equal(t, h, got)
		}
		ok, err := c.IsAllowed(ctx, h, testContract)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = c.IsAllowed(ctx, h, alice.addr)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGradingOperations(t *testing.T) {
	ctx := context.Background()
	c := newCoprocessor(t)
	w := newWallet(t)

	key := []Handle{importValue(t, c, w, 4), importValue(t, c, w, 9)}
	answers := []Handle{importValue(t, c, w, 4), importValue(t, c, w, 8)}

	one, err := c.TrivialEncrypt(ctx, testContract, TypeUint32, 1)
	require.NoError(t, err)
	zero, err := c.TrivialEncrypt(ctx, testContract, TypeUint32, 0)
	require.NoError(t, err)

	score := zero
	for i := range key {
		eq, err := c.Eq(ctx, testContract, answers[i], key[i])
		require.NoError(t, err)
		assert.Equal(t, TypeBool, eq.Type())
		point, err := c.Select(ctx, testContract, eq, one, zero)
		require.NoError(t, err)
		score, err = c.Add(ctx, testContract, score, point)
		require.NoError(t, err)
	}

	got, err := c.OracleDecrypt(ctx, testContract, score)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got)
}

func TestAddWraps(t *testing.T) {
	ctx := context.Background()
	c := newCoprocessor(t)

	a, err := c.TrivialEncrypt(ctx, testContract, TypeUint32, 0xffffffff)
	require.NoError(t, err)
	b, err := c.TrivialEncrypt(ctx, testContract, TypeUint32, 2)
	require.NoError(t, err)
	sum, err := c.Add(ctx, testContract, a, b)
	require.NoError(t, err)

	got, err := c.OracleDecrypt(ctx, testContract, sum)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got)
}

func TestOperationTypeChecks(t *testing.T) {
	ctx := context.Background()
	c := newCoprocessor(t)

	u, err := c.TrivialEncrypt(ctx, testContract, TypeUint32, 1)
	require.NoError(t, err)
	b, err := c.TrivialEncrypt(ctx, testContract, TypeBool, 1)
	require.NoError(t, err)

	_, err = c.Add(ctx, testContract, u, b)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = c.Select(ctx, testContract, u, u, u)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = c.Eq(ctx, testContract, u, b)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestOperationsRequireACL(t *testing.T) {
	ctx := context.Background()
	c := newCoprocessor(t)
	stranger := chain.MustParseAddress("0x0000000000000000000000000000000000000bad")

	h, err := c.TrivialEncrypt(ctx, testContract, TypeUint32, 5)
	require.NoError(t, err)

	_, err = c.Add(ctx, stranger, h, h)
	assert.ErrorIs(t, err, ErrNotAllowed)
	_, err = c.OracleDecrypt(ctx, stranger, h)
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.ErrorIs(t, c.Allow(ctx, stranger, h, stranger), ErrNotAllowed)

	require.NoError(t, c.Allow(ctx, testContract, h, stranger))
	got, err := c.OracleDecrypt(ctx, stranger, h)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), got)
}

func TestUserDecrypt(t *testing.T) {
	ctx := context.Background()
	c := newCoprocessor(t)
	alice := newWallet(t)
	bob := newWallet(t)
	now := time.Unix(1_700_000_000, 0)

	h, err := c.TrivialEncrypt(ctx, testContract, TypeUint32, 42)
	require.NoError(t, err)
	require.NoError(t, c.Allow(ctx, testContract, h, alice.addr))

	storage := NewMemoryStorage()
	sig, err := LoadOrSign(storage, c.Instance(), []chain.Address{testContract}, alice.key, now)
	require.NoError(t, err)

	req := UserDecryptRequest{
		Pairs:         []HandleContractPair{{Handle: h, Contract: testContract}},
		Authorization: sig.Signature,
	}

	t.Run("inside window", func(t *testing.T) {
		res, err := c.UserDecrypt(ctx, req, now.Add(time.Hour))
		require.NoError(t, err)
		got, err := sig.Open(res[h])
		require.NoError(t, err)
		assert.Equal(t, uint32(42), got)
	})

	t.Run("before start", func(t *testing.T) {
		_, err := c.UserDecrypt(ctx, req, now.Add(-time.Hour))
		assert.ErrorIs(t, err, ErrAuthorization)
	})

	t.Run("after expiry", func(t *testing.T) {
		_, err := c.UserDecrypt(ctx, req, now.Add(DefaultDurationDays*24*time.Hour+time.Hour))
		assert.ErrorIs(t, err, ErrAuthorization)
	})

	t.Run("user not allowed", func(t *testing.T) {
		bobSig, err := LoadOrSign(storage, c.Instance(), []chain.Address{testContract}, bob.key, now)
		require.NoError(t, err)
		_, err = c.UserDecrypt(ctx, UserDecryptRequest{Pairs: req.Pairs, Authorization: bobSig.Signature}, now)
		assert.ErrorIs(t, err, ErrNotAllowed)
	})

	t.Run("contract outside authorization", func(t *testing.T) {
		other := chain.MustParseAddress("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512")
		scoped, err := LoadOrSign(storage, c.Instance(), []chain.Address{other}, alice.key, now)
		require.NoError(t, err)
		_, err = c.UserDecrypt(ctx, UserDecryptRequest{Pairs: req.Pairs, Authorization: scoped.Signature}, now)
		assert.ErrorIs(t, err, ErrAuthorization)
	})

	t.Run("tampered token", func(t *testing.T) {
		bad := UserDecryptRequest{Pairs: req.Pairs, Authorization: sig.Signature + "x"}
		_, err := c.UserDecrypt(ctx, bad, now)
		assert.ErrorIs(t, err, ErrAuthorization)
	})
}

func TestVerifyAuthorizationRejectsForeignWalletKey(t *testing.T) {
	alice := newWallet(t)
	bob := newWallet(t)
	now := time.Unix(1_700_000_000, 0)

	claims := AuthorizationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   alice.addr.String(),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		PublicKey: hex.EncodeToString(make([]byte, 32)),
		WalletKey: hex.EncodeToString(bob.key.Public().(ed25519.PublicKey)),
		Contracts: []string{testContract.String()},
		ChainID:   testChainID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(bob.key)
	require.NoError(t, err)

	_, err = VerifyAuthorization(token, now)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = SignAuthorization(bob.key, [32]byte{1}, nil, testChainID, now, 0)
	assert.Error(t, err)
}

func TestLoadOrSignCaches(t *testing.T) {
	c := newCoprocessor(t)
	w := newWallet(t)
	now := time.Unix(1_700_000_000, 0)
	storage := NewFileStorage(filepath.Join(t.TempDir(), "signatures.json"))

	first, err := LoadOrSign(storage, c.Instance(), []chain.Address{testContract}, w.key, now)
	require.NoError(t, err)
	second, err := LoadOrSign(storage, c.Instance(), []chain.Address{testContract}, w.key, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.Signature, second.Signature)
	assert.Equal(t, w.addr, second.User)

	expired, err := LoadOrSign(storage, c.Instance(), []chain.Address{testContract}, w.key, now.Add((DefaultDurationDays+1)*24*time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, first.Signature, expired.Signature)
}

func TestSignatureStorageKeyIgnoresOrder(t *testing.T) {
	w := chain.MustParseAddress("0x00000000000000000000000000000000000000aa")
	a := chain.MustParseAddress("0x0000000000000000000000000000000000000001")
	b := chain.MustParseAddress("0x0000000000000000000000000000000000000002")

	assert.Equal(t, SignatureStorageKey(testChainID, w, []chain.Address{a, b}), SignatureStorageKey(testChainID, w, []chain.Address{b, a}))
	assert.NotEqual(t, SignatureStorageKey(testChainID, w, []chain.Address{a}), SignatureStorageKey(testChainID, w, []chain.Address{b}))
	assert.NotEqual(t, SignatureStorageKey(testChainID, w, []chain.Address{a}), SignatureStorageKey(testChainID+1, w, []chain.Address{a}))
}

func TestLoadOrSignIsScopedToChain(t *testing.T) {
	ctx := context.Background()
	home := newCoprocessor(t)
	away, err := NewCoprocessor(testChainID+1, []byte("test-master-key-0123456789"), NewMemoryStore())
	require.NoError(t, err)
	w := newWallet(t)
	now := time.Unix(1_700_000_000, 0)
	storage := NewMemoryStorage()

	h, err := away.TrivialEncrypt(ctx, testContract, TypeUint32, 7)
	require.NoError(t, err)
	require.NoError(t, away.Allow(ctx, testContract, h, w.addr))

	homeSig, err := LoadOrSign(storage, home.Instance(), []chain.Address{testContract}, w.key, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(testChainID), homeSig.ChainID)

	awaySig, err := LoadOrSign(storage, away.Instance(), []chain.Address{testContract}, w.key, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(testChainID+1), awaySig.ChainID)
	assert.NotEqual(t, homeSig.Signature, awaySig.Signature)

	res, err := away.UserDecrypt(ctx, UserDecryptRequest{
		Pairs:         []HandleContractPair{{Handle: h, Contract: testContract}},
		Authorization: awaySig.Signature,
	}, now.Add(time.Minute))
	require.NoError(t, err)
	got, err := awaySig.Open(res[h])
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got)

	again, err := LoadOrSign(storage, home.Instance(), []chain.Address{testContract}, w.key, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, homeSig.Signature, again.Signature)
}

func TestLoadOrSignReplacesForeignChainEntry(t *testing.T) {
	c := newCoprocessor(t)
	w := newWallet(t)
	now := time.Unix(1_700_000_000, 0)
	storage := NewMemoryStorage()

	// An entry written under this chain's key but signed for another chain.
	token, err := SignAuthorization(w.key, [32]byte{9}, []chain.Address{testContract}, testChainID+1, now, DefaultDurationDays)
	require.NoError(t, err)
	raw, err := json.Marshal(DecryptionSignature{
		Signature: token, Contracts: []chain.Address{testContract}, User: w.addr,
		ChainID: testChainID + 1, StartTimestamp: now.Unix(), DurationDays: DefaultDurationDays,
	})
	require.NoError(t, err)
	key := SignatureStorageKey(testChainID, w.addr, []chain.Address{testContract})
	require.NoError(t, storage.SetItem(key, string(raw)))

	sig, err := LoadOrSign(storage, c.Instance(), []chain.Address{testContract}, w.key, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(testChainID), sig.ChainID)
	assert.NotEqual(t, token, sig.Signature)
}

func TestFillInBlankValue(t *testing.T) {
	assert.Equal(t, FillInBlankValue("Paris"), FillInBlankValue("Paris"))
	assert.NotEqual(t, FillInBlankValue("Paris"), FillInBlankValue("paris"))
	assert.NotEqual(t, FillInBlankValue("Paris"), FillInBlankValue("Paris "))
	// keccak256("") = 0xc5d24601...
	assert.Equal(t, uint32(0xc5d24601), FillInBlankValue(""))
}

func TestHandleText(t *testing.T) {
	c := newCoprocessor(t)
	h, err := c.TrivialEncrypt(context.Background(), testContract, TypeUint32, 1)
	require.NoError(t, err)

	parsed, err := ParseHandle(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = ParseHandle("deadbeef")
	assert.ErrorIs(t, err, ErrInvalidHandle)
}
