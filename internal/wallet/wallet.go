// Package wallet manages ed25519 signing keys and their encrypted keystore files.
package wallet

import (
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
)

var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted keystore")

// scrypt parameters for keystore encryption.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Wallet is a signing key and the address it controls.
type Wallet struct {
	key     ed25519.PrivateKey
	address chain.Address
}

// New generates a fresh wallet.
func New() (*Wallet, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return FromKey(key), nil
}

// FromKey wraps an existing private key.
func FromKey(key ed25519.PrivateKey) *Wallet {
	return &Wallet{
		key:     key,
		address: chain.AddressFromPublicKey(key.Public().(ed25519.PublicKey)),
	}
}

// FromSeed rebuilds a wallet from a 32-byte hex seed.
func FromSeed(hexSeed string) (*Wallet, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, errors.New("seed must be 32 bytes of hex")
	}
	return FromKey(ed25519.NewKeyFromSeed(seed)), nil
}

func (w *Wallet) Address() chain.Address { return w.address }

func (w *Wallet) PrivateKey() ed25519.PrivateKey { return w.key }

func (w *Wallet) PublicKey() ed25519.PublicKey { return w.key.Public().(ed25519.PublicKey) }

// Sign signs msg with the wallet key.
func (w *Wallet) Sign(msg []byte) []byte { return ed25519.Sign(w.key, msg) }

// Verify checks that sig over msg was produced by the key behind address.
func Verify(address chain.Address, pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || chain.AddressFromPublicKey(pub) != address {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

type keystoreFile struct {
	Version    int           `json:"version"`
	Address    chain.Address `json:"address"`
	Salt       string        `json:"salt"`
	Nonce      string        `json:"nonce"`
	Ciphertext string        `json:"ciphertext"`
	N          int           `json:"n"`
	R          int           `json:"r"`
	P          int           `json:"p"`
}

// Save encrypts the wallet seed under passphrase and writes it to path.
func (w *Wallet) Save(path, passphrase string) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	aead, err := keystoreCipher(passphrase, salt, scryptN, scryptR, scryptP)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	ks := keystoreFile{
		Version:    1,
		Address:    w.address,
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(aead.Seal(nil, nonce, w.key.Seed(), w.address[:])),
		N:          scryptN,
		R:          scryptR,
		P:          scryptP,
	}
	raw, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create keystore dir: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// Load decrypts the keystore at path.
func Load(path, passphrase string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	var ks keystoreFile
	if err := json.Unmarshal(raw, &ks); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return nil, fmt.Errorf("parse keystore salt: %w", err)
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, fmt.Errorf("parse keystore nonce: %w", err)
	}
	ct, err := hex.DecodeString(ks.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("parse keystore ciphertext: %w", err)
	}
	aead, err := keystoreCipher(passphrase, salt, ks.N, ks.R, ks.P)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	seed, err := aead.Open(nil, nonce, ct, ks.Address[:])
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, ErrWrongPassphrase
	}
	w := FromKey(ed25519.NewKeyFromSeed(seed))
	if w.address != ks.Address {
		return nil, ErrWrongPassphrase
	}
	return w, nil
}

// ReadAddress returns the address recorded in a keystore without decrypting it.
func ReadAddress(path string) (chain.Address, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return chain.Address{}, fmt.Errorf("read keystore: %w", err)
	}
	var ks keystoreFile
	if err := json.Unmarshal(raw, &ks); err != nil {
		return chain.Address{}, fmt.Errorf("parse keystore: %w", err)
	}
	return ks.Address, nil
}

func keystoreCipher(passphrase string, salt []byte, n, r, p int) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, n, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive keystore key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}
