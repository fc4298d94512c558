package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	rows []Row

	lastLimit  int
	lastOffset int
	inserted   []Row
}

func (s *stubRepo) Insert(ctx context.Context, ip, entryType, action, data, userID string) error {
	s.inserted = append(s.inserted, Row{IP: ip, Type: entryType, Action: action, Data: data, UserID: userID})
	return nil
}

func (s *stubRepo) List(ctx context.Context, limit, offset int) ([]Row, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func seededRepo(n int) *stubRepo {
	repo := &stubRepo{}
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		repo.rows = append(repo.rows, Row{
			ID:        fmt.Sprintf("%d", i+1),
			Type:      "LOGIN",
			Action:    fmt.Sprintf("entry %d", i+1),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return repo
}

func TestRecordRequiresTypeAndAction(t *testing.T) {
	svc := NewService(&stubRepo{})

	err := svc.Record(context.Background(), Entry{IP: "10.0.0.1", Action: "orphan"})
	require.Error(t, err)
	err = svc.Record(context.Background(), Entry{IP: "10.0.0.1", Type: "LOGIN"})
	require.Error(t, err)
}

func TestRecordMarshalsData(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	err := svc.Record(context.Background(), Entry{
		IP: "10.0.0.1", Type: "LOGIN", Action: "login failed",
		Data:   map[string]string{"email": "doc@clinic.test"},
		UserID: "u-1",
	})
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)
	assert.JSONEq(t, `{"email":"doc@clinic.test"}`, repo.inserted[0].Data)
	assert.Equal(t, "u-1", repo.inserted[0].UserID)
}

func TestRecordWithoutData(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	require.NoError(t, svc.Record(context.Background(), Entry{Type: "LOGOUT", Action: "logged out"}))
	assert.Empty(t, repo.inserted[0].Data)
}

func TestListDefaultsAndHasNext(t *testing.T) {
	repo := seededRepo(25)
	svc := NewService(repo)

	result, err := svc.List(context.Background(), ListFilters{})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 20)
	assert.Equal(t, 1, result.Paging.Page)
	assert.Equal(t, 20, result.Paging.PageSize)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 21, repo.lastLimit)
}

func TestListLastPage(t *testing.T) {
	repo := seededRepo(25)
	svc := NewService(repo)

	result, err := svc.List(context.Background(), ListFilters{Page: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 5)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 20, repo.lastOffset)
}

func TestListClampsPageSize(t *testing.T) {
	repo := seededRepo(100)
	svc := NewService(repo)

	result, err := svc.List(context.Background(), ListFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 50)
	assert.Equal(t, 50, result.Paging.PageSize)
}

func TestListNegativePageClampsToFirst(t *testing.T) {
	repo := seededRepo(5)
	svc := NewService(repo)

	result, err := svc.List(context.Background(), ListFilters{Page: -3, PageSize: -1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Paging.Page)
	assert.Equal(t, 20, result.Paging.PageSize)
	assert.Len(t, result.Rows, 5)
}
