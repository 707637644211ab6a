package service

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/config"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/repository"
	"github.com/cogniseal/cogniseal-ledger/internal/wallet"
)

// Common auth errors.
var (
	ErrChallengeExpired = errors.New("login challenge expired or missing")
	ErrInvalidSignature = errors.New("invalid wallet signature")
)

// ChallengeTTL is how long a login challenge can be answered.
const ChallengeTTL = 5 * time.Minute

// Claims extends JWT standard claims with the wallet address.
type Claims struct {
	jwt.RegisteredClaims
	Address chain.Address `json:"address"`
}

// ChallengeStore keeps pending login challenges.
type ChallengeStore interface {
	Save(ctx context.Context, address, message string, ttl time.Duration) error
	// Consume returns repository.ErrCacheMiss when no challenge is pending.
	Consume(ctx context.Context, address string) (string, error)
}

// AuthService handles wallet login and session tokens.
type AuthService struct {
	cfg        *config.Config
	challenges ChallengeStore
	now        func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, challenges ChallengeStore) *AuthService {
	return &AuthService{cfg: cfg, challenges: challenges, now: time.Now}
}

// ChallengeMessage is the text a wallet signs to log in.
func ChallengeMessage(address chain.Address, nonce string, issuedAt int64) string {
	return fmt.Sprintf("CogniSeal login\naddress: %s\nnonce: %s\nissued: %d", address, nonce, issuedAt)
}

// IssueChallenge creates a one-time login challenge for address.
func (s *AuthService) IssueChallenge(ctx context.Context, address chain.Address) (*model.ChallengeResponse, error) {
	now := s.now()
	msg := ChallengeMessage(address, uuid.New().String(), now.Unix())
	if err := s.challenges.Save(ctx, address.String(), msg, ChallengeTTL); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	return &model.ChallengeResponse{Message: msg, ExpiresAt: now.Add(ChallengeTTL).Unix()}, nil
}

// Login verifies the signed challenge and issues a session token.
func (s *AuthService) Login(ctx context.Context, req *model.WalletLoginRequest) (*model.WalletLoginResponse, error) {
	address, err := chain.ParseAddress(req.Address)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	pub, err := hex.DecodeString(strings.TrimPrefix(req.PublicKey, "0x"))
	if err != nil {
		return nil, ErrInvalidSignature
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		return nil, ErrInvalidSignature
	}

	msg, err := s.challenges.Consume(ctx, address.String())
	if errors.Is(err, repository.ErrCacheMiss) {
		return nil, ErrChallengeExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if !wallet.Verify(address, ed25519.PublicKey(pub), []byte(msg), sig) {
		return nil, ErrInvalidSignature
	}

	token, expiresAt, err := s.GenerateToken(address)
	if err != nil {
		return nil, err
	}
	return &model.WalletLoginResponse{Token: token, Address: address, ExpiresAt: expiresAt.Unix()}, nil
}

// GenerateToken creates an HS256 session JWT for address.
func (s *AuthService) GenerateToken(address chain.Address) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.JWTExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   address.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Address: address,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject != claims.Address.String() {
		return nil, errors.New("token subject does not match address")
	}

	return claims, nil
}
