package upload

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"imageshelf/internal/config"
	"imageshelf/internal/database"
	"imageshelf/internal/domain"
	"imageshelf/internal/domain/identity"
	"imageshelf/internal/repository"
	"imageshelf/internal/storage"
)

type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Create(ctx context.Context, img *domain.StoredImage) error {
	args := m.Called(ctx, img)
	return args.Error(0)
}

func (m *MockImageStore) List(ctx context.Context, limit, offset int) ([]domain.StoredImage, int64, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.StoredImage), args.Get(1).(int64), args.Error(2)
}

func (m *MockImageStore) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	args := m.Called(ctx, filename)
	return args.Bool(0), args.Error(1)
}

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) ResolveOrCreate(ctx context.Context, key string) (*domain.Identity, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

type recordingPublisher struct {
	events []domain.ImageDescriptor
}

func (p *recordingPublisher) PublishImageCreated(img domain.ImageDescriptor) {
	p.events = append(p.events, img)
}

type testEnv struct {
	service   *Service
	db        *gorm.DB
	dir       string
	publisher *recordingPublisher
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{
			Dir:           dir,
			MaxSize:       config.DefaultMaxUploadSize,
			PublicBaseURL: "http://localhost:8080",
		},
		Identity: config.IdentityConfig{DemoKey: "demo@imageshelf.local"},
	}
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Connect(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	svc := NewService(
		testConfig(dir),
		repository.NewImageRepository(db),
		identity.NewService(repository.NewIdentityRepository(db), nil),
		files,
		publisher,
		nil,
	)
	return &testEnv{service: svc, db: db, dir: dir, publisher: publisher}
}

func setupServiceWith(t *testing.T, store domain.ImageStore, identities domain.IdentityProvider) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return NewService(testConfig(dir), store, identities, files, nil, nil), dir
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func recordCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&domain.StoredImage{}).Count(&count).Error)
	return count
}

func fileFrom(name, contentType string, data []byte) File {
	return File{Name: name, ContentType: contentType, Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func TestIngestStoresImageAndRecord(t *testing.T) {
	env := setupService(t)
	data := testJPEG(t, 800, 1200)

	desc, err := env.service.Ingest(context.Background(), fileFrom("page01.jpg", "image/jpeg", data))
	require.NoError(t, err)

	assert.Equal(t, 800, desc.Width)
	assert.Equal(t, 1200, desc.Height)
	assert.Equal(t, "image/jpeg", desc.MimeType)
	assert.Equal(t, int64(len(data)), desc.Size)
	assert.Equal(t, "page01.jpg", desc.OriginalName)
	assert.Equal(t, ".jpg", filepath.Ext(desc.Filename))
	assert.NotContains(t, desc.Filename, "page01")
	assert.Equal(t, "http://localhost:8080/uploads/"+desc.Filename, desc.URL)

	stored, err := os.ReadFile(filepath.Join(env.dir, desc.Filename))
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	var record domain.StoredImage
	require.NoError(t, env.db.First(&record, "id = ?", desc.ID).Error)
	assert.Equal(t, desc.Filename, record.Filename)
	assert.NotEmpty(t, record.IdentityID)

	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, desc.ID, env.publisher.events[0].ID)
}

func TestIngestAttributesUploadsToOneIdentity(t *testing.T) {
	env := setupService(t)

	for i := 0; i < 3; i++ {
		_, err := env.service.Ingest(context.Background(), fileFrom("p.png", "image/png", testPNG(t, 4, 4)))
		require.NoError(t, err)
	}

	var owners []string
	require.NoError(t, env.db.Model(&domain.StoredImage{}).Distinct().Pluck("identity_id", &owners).Error)
	assert.Len(t, owners, 1)

	var identities int64
	require.NoError(t, env.db.Model(&domain.Identity{}).Count(&identities).Error)
	assert.Equal(t, int64(1), identities)
}

func TestIngestRejectsDisallowedMimeTypeBeforeWriting(t *testing.T) {
	env := setupService(t)

	cases := []File{
		fileFrom("notes.txt", "text/plain", []byte("hello")),
		fileFrom("anim.gif", "image/gif", []byte("GIF89a....")),
		fileFrom("doc.pdf", "", []byte("%PDF-1.4 ...")),
		// declared type wins over a valid PNG body
		fileFrom("p.png", "image/webp", testPNG(t, 2, 2)),
	}
	for _, f := range cases {
		_, err := env.service.Ingest(context.Background(), f)
		assert.ErrorIs(t, err, ErrInvalidMimeType, f.Name)
	}

	assert.Empty(t, dirEntries(t, env.dir))
	assert.Equal(t, int64(0), recordCount(t, env.db))
}

func TestIngestRejectsOversizedFile(t *testing.T) {
	env := setupService(t)
	env.service.cfg.Upload.MaxSize = 1024

	big := make([]byte, 2048)
	_, err := env.service.Ingest(context.Background(), fileFrom("big.jpg", "image/jpeg", big))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// size unknown up front: detected while writing, then cleaned up
	unknown := File{Name: "big.png", ContentType: "image/png", Size: -1, Content: bytes.NewReader(append(testPNG(t, 2, 2), big...))}
	_, err = env.service.Ingest(context.Background(), unknown)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	assert.Empty(t, dirEntries(t, env.dir))
	assert.Equal(t, int64(0), recordCount(t, env.db))
}

func TestIngestRejectsEmptyAndMissingFile(t *testing.T) {
	env := setupService(t)

	_, err := env.service.Ingest(context.Background(), File{Name: "x.jpg", ContentType: "image/jpeg"})
	assert.ErrorIs(t, err, ErrMissingFile)

	_, err = env.service.Ingest(context.Background(), fileFrom("x.jpg", "image/jpeg", nil))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = env.service.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingFile)

	assert.Empty(t, dirEntries(t, env.dir))
}

func TestIngestRemovesUndecodableImage(t *testing.T) {
	env := setupService(t)

	truncated := testJPEG(t, 64, 64)[:20]
	_, err := env.service.Ingest(context.Background(), fileFrom("broken.jpg", "image/jpeg", truncated))
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = env.service.Ingest(context.Background(), fileFrom("fake.png", "image/png", []byte("definitely not a png")))
	assert.ErrorIs(t, err, ErrInvalidImage)

	assert.Empty(t, dirEntries(t, env.dir))
	assert.Equal(t, int64(0), recordCount(t, env.db))
	assert.Empty(t, env.publisher.events)
}

func TestIngestRejectsContentThatContradictsDeclaredType(t *testing.T) {
	env := setupService(t)

	_, err := env.service.Ingest(context.Background(), fileFrom("scan.png", "image/png", testJPEG(t, 8, 6)))
	assert.ErrorIs(t, err, ErrInvalidImage)

	assert.Empty(t, dirEntries(t, env.dir))
	assert.Equal(t, int64(0), recordCount(t, env.db))
	assert.Empty(t, env.publisher.events)
}

func TestIngestRemovesFileWhenMetadataWriteFails(t *testing.T) {
	store := new(MockImageStore)
	store.On("Create", mock.Anything, mock.AnythingOfType("*domain.StoredImage")).Return(errors.New("disk full"))
	identities := new(MockIdentityProvider)
	identities.On("ResolveOrCreate", mock.Anything, "demo@imageshelf.local").Return(&domain.Identity{ID: "owner"}, nil)

	svc, dir := setupServiceWith(t, store, identities)

	_, err := svc.Ingest(context.Background(), fileFrom("page.jpg", "image/jpeg", testJPEG(t, 10, 10)))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, dirEntries(t, dir))
	store.AssertExpectations(t)
}

func TestIngestRemovesFileWhenIdentityFails(t *testing.T) {
	store := new(MockImageStore)
	identities := new(MockIdentityProvider)
	identities.On("ResolveOrCreate", mock.Anything, mock.Anything).Return(nil, errors.New("identity backend down"))

	svc, dir := setupServiceWith(t, store, identities)

	_, err := svc.Ingest(context.Background(), fileFrom("page.jpg", "image/jpeg", testJPEG(t, 10, 10)))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, dirEntries(t, dir))
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngestReallocatesOnNameCollision(t *testing.T) {
	env := setupService(t)
	names := []string{"aaaa", "aaaa", "bbbb"}
	env.service.allocator = &Allocator{
		now: func() time.Time { return time.UnixMilli(1700000000000) },
		random: func() string {
			n := names[0]
			names = names[1:]
			return n
		},
	}
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "1700000000000-aaaa.png"), []byte("existing"), 0644))

	desc, err := env.service.Ingest(context.Background(), fileFrom("p.png", "image/png", testPNG(t, 3, 5)))
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-bbbb.png", desc.Filename)

	existing, err := os.ReadFile(filepath.Join(env.dir, "1700000000000-aaaa.png"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(existing))
}

func TestIngestSniffsUndeclaredType(t *testing.T) {
	env := setupService(t)

	desc, err := env.service.Ingest(context.Background(), fileFrom("scan", "", testPNG(t, 30, 40)))
	require.NoError(t, err)
	assert.Equal(t, "image/png", desc.MimeType)
	assert.Equal(t, ".png", filepath.Ext(desc.Filename))
	assert.Equal(t, 30, desc.Width)
	assert.Equal(t, 40, desc.Height)
}
