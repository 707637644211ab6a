package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
)

// CiphertextRepository persists coprocessor ciphertexts and their ACL.
type CiphertextRepository struct {
	pool *pgxpool.Pool
}

// NewCiphertextRepository creates a new CiphertextRepository.
func NewCiphertextRepository(pool *pgxpool.Pool) *CiphertextRepository {
	return &CiphertextRepository{pool: pool}
}

// PutCiphertext stores a sealed ciphertext. Handles are content addressed,
// so a second write of the same handle is ignored.
func (r *CiphertextRepository) PutCiphertext(ctx context.Context, h fhe.Handle, sealed []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ciphertexts (handle, sealed) VALUES ($1, $2)
		 ON CONFLICT (handle) DO NOTHING`, h[:], sealed)
	return err
}

func (r *CiphertextRepository) GetCiphertext(ctx context.Context, h fhe.Handle) ([]byte, error) {
	var sealed []byte
	err := r.pool.QueryRow(ctx, `SELECT sealed FROM ciphertexts WHERE handle = $1`, h[:]).Scan(&sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fhe.ErrUnknownHandle
	}
	return sealed, err
}

func (r *CiphertextRepository) Allow(ctx context.Context, h fhe.Handle, account chain.Address) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ciphertext_acl (handle, account) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, h[:], account[:])
	return err
}

func (r *CiphertextRepository) IsAllowed(ctx context.Context, h fhe.Handle, account chain.Address) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ciphertext_acl WHERE handle = $1 AND account = $2)`,
		h[:], account[:]).Scan(&ok)
	return ok, err
}
