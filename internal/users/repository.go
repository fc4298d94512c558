package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacslink/pacslink/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userSelect = `
SELECT u.id, u.hospital, u.email, u.name, u.contact, u.position, u.verified, u.upload_count,
       c.id, c.name, l.id, l.name, l.key, u.created_at
FROM users u
JOIN countries c ON c.id = u.country_id
JOIN langs l ON l.id = u.lang_id`

// GetByID returns one account with its joined references.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id).
		Scan(&u.ID, &u.Hospital, &u.Email, &u.Name, &u.Contact, &u.Position, &u.Verified, &u.UploadCount,
			&u.Country.ID, &u.Country.Name, &u.Lang.ID, &u.Lang.Name, &u.Lang.Key, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// List returns all accounts, newest first.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, userSelect+` ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Hospital, &u.Email, &u.Name, &u.Contact, &u.Position, &u.Verified, &u.UploadCount,
			&u.Country.ID, &u.Country.Name, &u.Lang.ID, &u.Lang.Name, &u.Lang.Key, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// updatableColumns whitelists the columns Update may touch.
var updatableColumns = map[string]bool{
	"hospital":      true,
	"name":          true,
	"contact":       true,
	"password_hash": true,
}

// Update patches the given columns on one account.
func (r *Repository) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	i := 1
	for col, val := range fields {
		if !updatableColumns[col] {
			return fmt.Errorf("users: column %q not updatable", col)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), i)
	_, err := r.pool.Exec(ctx, query, args...)
	return err
}

// Delete removes one account. Token and storage rows go with it via ON DELETE
// CASCADE; physical files are purged separately.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

var _ RepositoryPort = (*Repository)(nil)
