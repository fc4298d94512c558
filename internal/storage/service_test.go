package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacslink/pacslink/internal/platform/httpx"
	"github.com/pacslink/pacslink/internal/shared"
)

type fakeRepo struct {
	objects map[string]*Object

	uploadCounts map[string]int
	deleteErr    error
	deletedUsers []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{objects: make(map[string]*Object), uploadCounts: make(map[string]int)}
}

func (f *fakeRepo) Insert(ctx context.Context, obj *Object) error {
	f.objects[obj.ID] = obj
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*Object, error) {
	obj, ok := f.objects[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return obj, nil
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID string) ([]Object, error) {
	var out []Object
	for _, obj := range f.objects {
		if obj.UserID == userID {
			out = append(out, *obj)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkConverted(ctx context.Context, id string) error {
	if obj, ok := f.objects[id]; ok {
		obj.Converted = true
	}
	return nil
}

func (f *fakeRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deletedUsers = append(f.deletedUsers, userID)
	var n int64
	for id, obj := range f.objects {
		if obj.UserID == userID {
			delete(f.objects, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) IncrementUploadCount(ctx context.Context, userID string) error {
	f.uploadCounts[userID]++
	return nil
}

type fakeObjectStore struct {
	uploads         map[string]string
	deletedPrefixes []string
	deleteErr       error
	presignErr      error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{uploads: make(map[string]string)}
}

func (f *fakeObjectStore) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads[key] = string(data)
	return nil
}

func (f *fakeObjectStore) PresignGet(ctx context.Context, key string) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://bucket.test/" + key + "?signed", nil
}

func (f *fakeObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedPrefixes = append(f.deletedPrefixes, prefix)
	return nil
}

type fakeConverter struct {
	err error
}

func (f *fakeConverter) Convert(ctx context.Context, dir, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	rendition := filename + ".png"
	if err := os.WriteFile(filepath.Join(dir, rendition), []byte("png-bytes"), 0o644); err != nil {
		return "", err
	}
	return rendition, nil
}

type serviceEnv struct {
	svc     *Service
	repo    *fakeRepo
	objects *fakeObjectStore
	conv    *fakeConverter
	dir     string
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	repo := newFakeRepo()
	objects := newFakeObjectStore()
	conv := &fakeConverter{}
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &serviceEnv{
		svc:     NewService(repo, objects, conv, dir, logger),
		repo:    repo,
		objects: objects,
		conv:    conv,
		dir:     dir,
	}
}

func TestSaveUploadWritesFileAndRecord(t *testing.T) {
	env := newServiceEnv(t)

	obj, err := env.svc.SaveUpload(context.Background(), "u-1", "study.dcm", "application/dicom", strings.NewReader("dicom-bytes"))
	require.NoError(t, err)
	require.NotEmpty(t, obj.ID)
	assert.Equal(t, fmt.Sprintf("u-1/%s.png", obj.ID), obj.ObjectKey)

	data, err := os.ReadFile(filepath.Join(env.dir, "u-1", obj.ID))
	require.NoError(t, err)
	assert.Equal(t, "dicom-bytes", string(data))

	assert.Contains(t, env.repo.objects, obj.ID)
	assert.Equal(t, 1, env.repo.uploadCounts["u-1"])
}

func TestPresignDownloadChecksOwnership(t *testing.T) {
	env := newServiceEnv(t)
	env.repo.objects["obj-1"] = &Object{ID: "obj-1", UserID: "u-1", ObjectKey: "u-1/obj-1.png"}

	url, err := env.svc.PresignDownload(context.Background(), "u-1", "obj-1")
	require.NoError(t, err)
	assert.Contains(t, url, "u-1/obj-1.png")

	_, err = env.svc.PresignDownload(context.Background(), "u-2", "obj-1")
	require.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = env.svc.PresignDownload(context.Background(), "u-1", "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestConvertObjectUploadsRendition(t *testing.T) {
	env := newServiceEnv(t)

	obj, err := env.svc.SaveUpload(context.Background(), "u-1", "study.dcm", "application/dicom", strings.NewReader("dicom-bytes"))
	require.NoError(t, err)

	require.NoError(t, env.svc.ConvertObject(context.Background(), obj.ID))

	assert.Equal(t, "png-bytes", env.objects.uploads[obj.ObjectKey])
	assert.True(t, env.repo.objects[obj.ID].Converted)
}

func TestConvertObjectConverterFailure(t *testing.T) {
	env := newServiceEnv(t)
	env.conv.err = errors.New("dcmj2pnm exited 1")

	obj, err := env.svc.SaveUpload(context.Background(), "u-1", "study.dcm", "application/dicom", strings.NewReader("dicom-bytes"))
	require.NoError(t, err)

	require.Error(t, env.svc.ConvertObject(context.Background(), obj.ID))
	assert.Empty(t, env.objects.uploads)
	assert.False(t, env.repo.objects[obj.ID].Converted)
}

func TestPurgeUserFilesRemovesEverything(t *testing.T) {
	env := newServiceEnv(t)

	obj, err := env.svc.SaveUpload(context.Background(), "u-1", "study.dcm", "application/dicom", strings.NewReader("dicom-bytes"))
	require.NoError(t, err)
	localPath := filepath.Join(env.dir, "u-1", obj.ID)
	require.FileExists(t, localPath)

	require.NoError(t, env.svc.PurgeUserFiles(context.Background(), "u-1"))

	assert.Empty(t, env.repo.objects)
	assert.NoFileExists(t, localPath)
	assert.Equal(t, []string{"u-1/"}, env.objects.deletedPrefixes)
}

func TestPurgeUserFilesLegsFailIndependently(t *testing.T) {
	env := newServiceEnv(t)
	env.repo.deleteErr = errors.New("db down")

	obj, err := env.svc.SaveUpload(context.Background(), "u-1", "study.dcm", "application/dicom", strings.NewReader("dicom-bytes"))
	require.NoError(t, err)
	localPath := filepath.Join(env.dir, "u-1", obj.ID)

	err = env.svc.PurgeUserFiles(context.Background(), "u-1")
	require.Error(t, err)

	// The failing database leg does not stop the local and bucket wipes.
	assert.NoFileExists(t, localPath)
	assert.Equal(t, []string{"u-1/"}, env.objects.deletedPrefixes)
}

func TestPurgeUserFilesIgnoresMissingLocalDir(t *testing.T) {
	env := newServiceEnv(t)

	require.NoError(t, env.svc.PurgeUserFiles(context.Background(), "ghost"))
	assert.Equal(t, []string{"ghost/"}, env.objects.deletedPrefixes)
}
