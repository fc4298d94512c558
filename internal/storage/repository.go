package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacslink/pacslink/internal/shared"
)

// Repository defines persistence operations for upload records.
type Repository interface {
	Insert(ctx context.Context, obj *Object) error
	Get(ctx context.Context, id string) (*Object, error)
	ListByUser(ctx context.Context, userID string) ([]Object, error)
	MarkConverted(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	IncrementUploadCount(ctx context.Context, userID string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert stores a new upload record.
func (r *PGRepository) Insert(ctx context.Context, obj *Object) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO storage_objects (id, user_id, object_key, filename, content_type)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		obj.ID, obj.UserID, obj.ObjectKey, obj.Filename, obj.ContentType).
		Scan(&obj.CreatedAt)
}

// Get fetches one upload record.
func (r *PGRepository) Get(ctx context.Context, id string) (*Object, error) {
	var obj Object
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, object_key, filename, content_type, converted, created_at
		 FROM storage_objects WHERE id = $1`, id).
		Scan(&obj.ID, &obj.UserID, &obj.ObjectKey, &obj.Filename, &obj.ContentType, &obj.Converted, &obj.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &obj, nil
}

// ListByUser returns the user's upload records newest first.
func (r *PGRepository) ListByUser(ctx context.Context, userID string) ([]Object, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, object_key, filename, content_type, converted, created_at
		 FROM storage_objects WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var objects []Object
	for rows.Next() {
		var obj Object
		if err := rows.Scan(&obj.ID, &obj.UserID, &obj.ObjectKey, &obj.Filename, &obj.ContentType, &obj.Converted, &obj.CreatedAt); err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// MarkConverted flags the record once its PNG rendition reached the bucket.
func (r *PGRepository) MarkConverted(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE storage_objects SET converted = TRUE WHERE id = $1`, id)
	return err
}

// DeleteByUser removes every record owned by the user.
func (r *PGRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM storage_objects WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// IncrementUploadCount bumps the owner's lifetime upload counter.
func (r *PGRepository) IncrementUploadCount(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET upload_count = upload_count + 1, updated_at = NOW() WHERE id = $1`, userID)
	return err
}

var _ Repository = (*PGRepository)(nil)
