package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacslink/pacslink/internal/platform/httpx"
	"github.com/pacslink/pacslink/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	Create(ctx context.Context, u *User) error
	IncrementFailCount(ctx context.Context, email string) error
	RecordLogin(ctx context.Context, email, ip string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, hospital, email, name, password_hash, contact, position, COALESCE(ip, ''), verified, fail_count, upload_count, lang_id, country_id, created_at, updated_at`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetProfile fetches the guard-endpoint view of an account.
func (r *PGRepository) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx,
		`SELECT u.id, u.position, u.email, u.name, u.upload_count, l.id, l.name, l.key
		 FROM users u JOIN langs l ON l.id = u.lang_id
		 WHERE u.id = $1`, id).
		Scan(&p.ID, &p.Position, &p.Email, &p.Name, &p.UploadCount, &p.Lang.ID, &p.Lang.Name, &p.Lang.Key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new account. A duplicate email maps to httpx.ErrDuplicate.
func (r *PGRepository) Create(ctx context.Context, u *User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, hospital, email, name, password_hash, contact, position, verified, lang_id, country_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		u.ID, u.Hospital, u.Email, u.Name, u.PasswordHash, u.Contact, u.Position, u.Verified, u.LangID, u.CountryID).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return httpx.ErrDuplicate
		}
		return err
	}
	return nil
}

// IncrementFailCount bumps the consecutive failed-login counter.
func (r *PGRepository) IncrementFailCount(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET fail_count = fail_count + 1, updated_at = NOW() WHERE email = $1`, email)
	return err
}

// RecordLogin resets the fail counter and stores the caller IP.
func (r *PGRepository) RecordLogin(ctx context.Context, email, ip string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET fail_count = 0, ip = $1, updated_at = NOW() WHERE email = $2`, ip, email)
	return err
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Hospital, &u.Email, &u.Name, &u.PasswordHash, &u.Contact, &u.Position,
		&u.IP, &u.Verified, &u.FailCount, &u.UploadCount, &u.LangID, &u.CountryID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)
