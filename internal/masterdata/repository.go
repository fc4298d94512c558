// Package masterdata serves the language and country reference tables.
package masterdata

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/language"
)

// Lang is a UI language option.
type Lang struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Country is a country option referenced by accounts.
type Country struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RepositoryPort defines data access for reference rows.
type RepositoryPort interface {
	Langs(ctx context.Context) ([]Lang, error)
	Countries(ctx context.Context) ([]Country, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Langs returns all language rows.
func (r *Repository) Langs(ctx context.Context) ([]Lang, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, key FROM langs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var langs []Lang
	for rows.Next() {
		var l Lang
		if err := rows.Scan(&l.ID, &l.Name, &l.Key); err != nil {
			return nil, err
		}
		langs = append(langs, l)
	}
	return langs, rows.Err()
}

// Countries returns all country rows.
func (r *Repository) Countries(ctx context.Context) ([]Country, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM countries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var countries []Country
	for rows.Next() {
		var c Country
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

// ValidateLangKey checks that a language key is a well-formed BCP 47 tag.
func ValidateLangKey(key string) error {
	if _, err := language.Parse(key); err != nil {
		return fmt.Errorf("masterdata: bad language key %q: %w", key, err)
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
