package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pacslink/pacslink/internal/platform/httpx"
)

// Service coordinates upload records, local files and the cloud bucket.
type Service struct {
	repo      Repository
	objects   ObjectStore
	converter Converter
	uploadDir string
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, objects ObjectStore, converter Converter, uploadDir string, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		objects:   objects,
		converter: converter,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// userDir is where a user's raw uploads live on local disk.
func (s *Service) userDir(userID string) string {
	return filepath.Join(s.uploadDir, userID)
}

// SaveUpload stores the raw DICOM file locally and records it. Conversion and
// the bucket copy happen later in the worker.
func (s *Service) SaveUpload(ctx context.Context, userID, filename, contentType string, file io.Reader) (*Object, error) {
	id := uuid.NewString()
	dir := s.userDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}

	dst, err := os.Create(filepath.Join(dir, id))
	if err != nil {
		return nil, fmt.Errorf("storage: create: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return nil, fmt.Errorf("storage: write: %w", err)
	}

	obj := &Object{
		ID:          id,
		UserID:      userID,
		ObjectKey:   fmt.Sprintf("%s/%s.png", userID, id),
		Filename:    filename,
		ContentType: contentType,
	}
	if err := s.repo.Insert(ctx, obj); err != nil {
		return nil, err
	}
	if err := s.repo.IncrementUploadCount(ctx, userID); err != nil {
		s.logger.Warn("increment upload count", slog.Any("error", err))
	}
	return obj, nil
}

// ListByUser returns the caller's upload records.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Object, error) {
	return s.repo.ListByUser(ctx, userID)
}

// PresignDownload returns a time-limited URL for an object the caller owns.
func (s *Service) PresignDownload(ctx context.Context, userID, objectID string) (string, error) {
	obj, err := s.repo.Get(ctx, objectID)
	if err != nil {
		return "", err
	}
	if obj.UserID != userID {
		return "", httpx.ErrForbidden
	}
	return s.objects.PresignGet(ctx, obj.ObjectKey)
}

// ConvertObject renders the stored DICOM file to PNG and uploads the
// rendition to the bucket.
func (s *Service) ConvertObject(ctx context.Context, objectID string) error {
	obj, err := s.repo.Get(ctx, objectID)
	if err != nil {
		return err
	}
	dir := s.userDir(obj.UserID)

	rendition, err := s.converter.Convert(ctx, dir, obj.ID)
	if err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(dir, rendition))
	if err != nil {
		return fmt.Errorf("storage: open rendition: %w", err)
	}
	defer f.Close()

	if err := s.objects.Upload(ctx, obj.ObjectKey, "image/png", f); err != nil {
		return err
	}
	return s.repo.MarkConverted(ctx, obj.ID)
}

// PurgeUserFiles removes the user's upload records, local files and bucket
// objects. The three legs run in parallel and fail independently; a single
// failing leg does not stop the others.
func (s *Service) PurgeUserFiles(ctx context.Context, userID string) error {
	// No errgroup.WithContext here: one failing leg must not cancel the others.
	ctx = context.WithoutCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		_, err := s.repo.DeleteByUser(ctx, userID)
		return err
	})
	g.Go(func() error {
		if err := os.RemoveAll(s.userDir(userID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.objects.DeletePrefix(ctx, userID+"/")
	})
	return g.Wait()
}
