package token

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacslink/pacslink/internal/platform/db"
	"github.com/pacslink/pacslink/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Find fetches a token by id.
func (r *PGRepository) Find(ctx context.Context, id string) (*Token, error) {
	var (
		tok Token
		due time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, due_date FROM auth_tokens WHERE id = $1`, id).
		Scan(&tok.ID, &tok.UserID, &due)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	tok.DueDate = due
	return &tok, nil
}

// Create inserts a new token row.
func (r *PGRepository) Create(ctx context.Context, tok Token) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_tokens (id, user_id, due_date) VALUES ($1, $2, $3)`,
		tok.ID, tok.UserID, tok.DueDate.UTC())
	return err
}

// Delete removes a token row, reporting whether one existed.
func (r *PGRepository) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// DeleteByUser removes every token owned by the user.
func (r *PGRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id = $1`, userID)
	return err
}

// DeleteExpired removes every token whose due date has passed.
func (r *PGRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE due_date <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Redeem deletes the token and updates the owning user in one transaction.
// The delete runs first; zero affected rows aborts without touching the user.
func (r *PGRepository) Redeem(ctx context.Context, id, userID, passwordHash string) (bool, error) {
	redeemed := false
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `DELETE FROM auth_tokens WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $1, verified = TRUE, updated_at = NOW() WHERE id = $2`,
			passwordHash, userID); err != nil {
			return err
		}
		redeemed = true
		return nil
	})
	return redeemed, err
}

var _ Repository = (*PGRepository)(nil)
