// Package audit persists the append-only action log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry represents a record stored in audit_logs. Entries are append-only;
// nothing in this package updates or deletes them.
type Entry struct {
	IP     string
	Type   string
	Action string
	Data   any
	UserID string
}

// Row is a persisted audit record.
type Row struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	Type      string    `json:"type"`
	Action    string    `json:"action"`
	Data      string    `json:"data,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository provides persistence for audit entries.
type Repository interface {
	Insert(ctx context.Context, ip, entryType, action, data, userID string) error
	List(ctx context.Context, limit, offset int) ([]Row, error)
}

// Service coordinates audit recording and admin listing.
type Service struct {
	repo Repository
}

// NewService constructs the audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record persists the log entry.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: recorder not initialised")
	}
	if entry.Type == "" || entry.Action == "" {
		return errors.New("audit: entry requires type/action")
	}
	var data string
	if entry.Data != nil {
		raw, err := json.Marshal(entry.Data)
		if err != nil {
			return err
		}
		data = string(raw)
	}
	return s.repo.Insert(ctx, entry.IP, entry.Type, entry.Action, data, entry.UserID)
}

// ListFilters controls paging for the admin log listing.
type ListFilters struct {
	Page     int
	PageSize int
}

// PagingInfo reports the window returned by List.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
}

// Result bundles listed rows with paging information.
type Result struct {
	Rows   []Row      `json:"rows"`
	Paging PagingInfo `json:"paging"`
}

// List returns audit rows newest first with clamped paging.
func (s *Service) List(ctx context.Context, filters ListFilters) (Result, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.List(ctx, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	return Result{
		Rows:   rows,
		Paging: PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext},
	}, nil
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends one audit record.
func (r *PGRepository) Insert(ctx context.Context, ip, entryType, action, data, userID string) error {
	var uid any
	if userID != "" {
		uid = userID
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (ip, type, action, data, user_id) VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		ip, entryType, action, data, uid)
	return err
}

// List returns audit records ordered newest first.
func (r *PGRepository) List(ctx context.Context, limit, offset int) ([]Row, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, ip, type, action, COALESCE(data, ''), COALESCE(user_id::text, ''), created_at
		 FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.IP, &row.Type, &row.Action, &row.Data, &row.UserID, &row.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
