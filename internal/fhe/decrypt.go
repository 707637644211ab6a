package fhe

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/nacl/box"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
)

var ErrAuthorization = errors.New("invalid decryption authorization")

// AuthorizationClaims is the payload a wallet signs to let the network
// re-encrypt its ciphertexts to an ephemeral key.
type AuthorizationClaims struct {
	jwt.RegisteredClaims
	PublicKey string   `json:"pk"`
	WalletKey string   `json:"wk"`
	Contracts []string `json:"contracts"`
	ChainID   uint64   `json:"chain_id"`
}

// Authorization is a verified decryption grant.
type Authorization struct {
	User      chain.Address
	PublicKey [32]byte
	Contracts []chain.Address
	ChainID   uint64
	NotBefore time.Time
	ExpiresAt time.Time
}

func (a *Authorization) covers(contract chain.Address) bool {
	for _, c := range a.Contracts {
		if c == contract {
			return true
		}
	}
	return false
}

// SignAuthorization produces an EdDSA token valid from start for durationDays.
func SignAuthorization(key ed25519.PrivateKey, ephemeral [32]byte, contracts []chain.Address, chainID uint64, start time.Time, durationDays int) (string, error) {
	if durationDays <= 0 {
		return "", errors.New("duration must be at least one day")
	}
	pub := key.Public().(ed25519.PublicKey)
	addrs := make([]string, len(contracts))
	for i, c := range contracts {
		addrs[i] = c.String()
	}
	claims := AuthorizationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   chain.AddressFromPublicKey(pub).String(),
			IssuedAt:  jwt.NewNumericDate(start),
			NotBefore: jwt.NewNumericDate(start),
			ExpiresAt: jwt.NewNumericDate(start.Add(time.Duration(durationDays) * 24 * time.Hour)),
		},
		PublicKey: hex.EncodeToString(ephemeral[:]),
		WalletKey: hex.EncodeToString(pub),
		Contracts: addrs,
		ChainID:   chainID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
}

// VerifyAuthorization checks the token signature against the embedded wallet
// key, that the key belongs to the subject address, and that now falls inside
// the validity window.
func VerifyAuthorization(token string, now time.Time) (*Authorization, error) {
	claims := &AuthorizationClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		c := t.Claims.(*AuthorizationClaims)
		raw, err := hex.DecodeString(c.WalletKey)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			return nil, errors.New("malformed wallet key")
		}
		pub := ed25519.PublicKey(raw)
		if chain.AddressFromPublicKey(pub).String() != c.Subject {
			return nil, errors.New("wallet key does not match subject")
		}
		return pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthorization, err)
	}

	auth := &Authorization{ChainID: claims.ChainID}
	if auth.User, err = chain.ParseAddress(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthorization, err)
	}
	pk, err := hex.DecodeString(claims.PublicKey)
	if err != nil || len(pk) != 32 {
		return nil, fmt.Errorf("%w: malformed public key", ErrAuthorization)
	}
	copy(auth.PublicKey[:], pk)
	for _, s := range claims.Contracts {
		a, err := chain.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthorization, err)
		}
		auth.Contracts = append(auth.Contracts, a)
	}
	if claims.NotBefore != nil {
		auth.NotBefore = claims.NotBefore.Time
	}
	auth.ExpiresAt = claims.ExpiresAt.Time
	return auth, nil
}

// HandleContractPair names a ciphertext and the contract that holds it.
type HandleContractPair struct {
	Handle   Handle        `json:"handle"`
	Contract chain.Address `json:"contract_address"`
}

// UserDecryptRequest asks the network to re-encrypt handles to the ephemeral
// key named in Authorization.
type UserDecryptRequest struct {
	Pairs         []HandleContractPair `json:"handle_contract_pairs" binding:"required,min=1,max=64"`
	Authorization string               `json:"authorization" binding:"required"`
}

// UserDecrypt returns, per handle, the plaintext sealed to the requester's
// ephemeral key. Both the user and the holding contract must be allowed on
// every handle.
func (c *Coprocessor) UserDecrypt(ctx context.Context, req UserDecryptRequest, now time.Time) (map[Handle][]byte, error) {
	auth, err := VerifyAuthorization(req.Authorization, now)
	if err != nil {
		return nil, err
	}
	if auth.ChainID != c.chainID {
		return nil, fmt.Errorf("%w: chain %d", ErrAuthorization, auth.ChainID)
	}
	if len(req.Pairs) == 0 {
		return nil, errors.New("no handles to decrypt")
	}

	out := make(map[Handle][]byte, len(req.Pairs))
	for _, p := range req.Pairs {
		if !auth.covers(p.Contract) {
			return nil, fmt.Errorf("%w: contract %s not authorized", ErrAuthorization, p.Contract)
		}
		if err := c.requireAllowed(ctx, p.Contract, p.Handle); err != nil {
			return nil, err
		}
		if err := c.requireAllowed(ctx, auth.User, p.Handle); err != nil {
			return nil, err
		}
		t, v, err := c.load(ctx, p.Handle)
		if err != nil {
			return nil, err
		}
		sealed, err := box.SealAnonymous(nil, encodePlaintext(t, v), &auth.PublicKey, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("reseal %s: %w", p.Handle, err)
		}
		out[p.Handle] = sealed
	}
	c.log.Debug().
		Str("user", auth.User.String()).
		Int("handles", len(out)).
		Msg("User decryption served")
	return out, nil
}

// GenerateKeypair returns a fresh ephemeral X25519 key pair for user decryption.
func GenerateKeypair() (pub, priv [32]byte, err error) {
	p, k, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return pub, priv, fmt.Errorf("generate keypair: %w", err)
	}
	return *p, *k, nil
}

// OpenResult decrypts one UserDecrypt result with the ephemeral key pair.
func OpenResult(pub, priv [32]byte, sealed []byte) (uint32, error) {
	plain, ok := box.OpenAnonymous(nil, sealed, &pub, &priv)
	if !ok {
		return 0, errors.New("decryption result not sealed to this key")
	}
	_, v, err := decodePlaintext(plain)
	return v, err
}
