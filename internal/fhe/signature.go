package fhe

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
)

// DefaultDurationDays is how long a freshly signed decryption authorization lasts.
const DefaultDurationDays = 365

// DecryptionSignature is a cached, signed decryption authorization together
// with the ephemeral key pair it was issued for.
type DecryptionSignature struct {
	PublicKey      string          `json:"publicKey"`
	PrivateKey     string          `json:"privateKey"`
	Signature      string          `json:"signature"`
	Contracts      []chain.Address `json:"contractAddresses"`
	User           chain.Address   `json:"userAddress"`
	ChainID        uint64          `json:"chainId"`
	StartTimestamp int64           `json:"startTimestamp"`
	DurationDays   int             `json:"durationDays"`
}

// StringStorage is the key/value store signatures are cached in.
type StringStorage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// IsValid reports whether now falls inside the signature's window.
func (s *DecryptionSignature) IsValid(now time.Time) bool {
	start := time.Unix(s.StartTimestamp, 0)
	end := start.Add(time.Duration(s.DurationDays) * 24 * time.Hour)
	return !now.Before(start) && now.Before(end)
}

// Keys decodes the ephemeral key pair.
func (s *DecryptionSignature) Keys() (pub, priv [32]byte, err error) {
	p, err := hex.DecodeString(s.PublicKey)
	if err != nil || len(p) != 32 {
		return pub, priv, errors.New("malformed ephemeral public key")
	}
	k, err := hex.DecodeString(s.PrivateKey)
	if err != nil || len(k) != 32 {
		return pub, priv, errors.New("malformed ephemeral private key")
	}
	copy(pub[:], p)
	copy(priv[:], k)
	return pub, priv, nil
}

// Open decrypts a UserDecrypt result addressed to this signature's key.
func (s *DecryptionSignature) Open(sealed []byte) (uint32, error) {
	pub, priv, err := s.Keys()
	if err != nil {
		return 0, err
	}
	return OpenResult(pub, priv, sealed)
}

// SignatureStorageKey is the cache key for user and the given contract set
// on chainID. Contract order does not matter.
func SignatureStorageKey(chainID uint64, user chain.Address, contracts []chain.Address) string {
	sorted := append([]chain.Address(nil), contracts...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })
	parts := [][]byte{binary.BigEndian.AppendUint64(nil, chainID), user[:]}
	for _, c := range sorted {
		parts = append(parts, c[:])
	}
	return "fhevm.decryptionSignature." + hex.EncodeToString(chain.Keccak256(parts...))
}

// LoadOrSign returns the cached signature for (chain, signer, contracts) when
// it is still valid, otherwise signs a new one and caches it.
func LoadOrSign(storage StringStorage, inst *Instance, contracts []chain.Address, key ed25519.PrivateKey, now time.Time) (*DecryptionSignature, error) {
	user := chain.AddressFromPublicKey(key.Public().(ed25519.PublicKey))
	cacheKey := SignatureStorageKey(inst.ChainID, user, contracts)

	if raw, ok, err := storage.GetItem(cacheKey); err != nil {
		return nil, fmt.Errorf("read signature cache: %w", err)
	} else if ok {
		var cached DecryptionSignature
		if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.IsValid(now) &&
			cached.User == user && cached.ChainID == inst.ChainID {
			return &cached, nil
		}
		// Expired, unreadable or foreign-chain entries are replaced below.
		_ = storage.RemoveItem(cacheKey)
	}

	pub, priv, err := GenerateKeypair()
	if err != nil {
		return nil, err
	}
	start := now.Truncate(time.Second)
	token, err := SignAuthorization(key, pub, contracts, inst.ChainID, start, DefaultDurationDays)
	if err != nil {
		return nil, fmt.Errorf("sign decryption authorization: %w", err)
	}
	sig := &DecryptionSignature{
		PublicKey:      hex.EncodeToString(pub[:]),
		PrivateKey:     hex.EncodeToString(priv[:]),
		Signature:      token,
		Contracts:      append([]chain.Address(nil), contracts...),
		User:           user,
		ChainID:        inst.ChainID,
		StartTimestamp: start.Unix(),
		DurationDays:   DefaultDurationDays,
	}
	raw, err := json.Marshal(sig)
	if err != nil {
		return nil, err
	}
	if err := storage.SetItem(cacheKey, string(raw)); err != nil {
		return nil, fmt.Errorf("write signature cache: %w", err)
	}
	return sig, nil
}

// MemoryStorage keeps items for the life of the process.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// FileStorage keeps items as a JSON object in a single file, written with
// owner-only permissions since it holds ephemeral private keys.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) read() (map[string]string, error) {
	items := make(map[string]string)
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return items, nil
}

func (f *FileStorage) write(items map[string]string) error {
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStorage) GetItem(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := items[key]
	return v, ok, nil
}

func (f *FileStorage) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.read()
	if err != nil {
		return err
	}
	items[key] = value
	return f.write(items)
}

func (f *FileStorage) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return f.write(items)
}
