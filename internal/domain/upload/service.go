package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"imageshelf/internal/config"
	"imageshelf/internal/domain"
	"imageshelf/internal/storage"
)

const maxAllocateAttempts = 3

// Publisher is notified after an upload has been durably recorded.
type Publisher interface {
	PublishImageCreated(img domain.ImageDescriptor)
}

// File is one uploaded file. Size may be -1 when unknown.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Service stores the bytes, validates them, and records the metadata.
// Bytes and record are written and rolled back together.
type Service struct {
	cfg        *config.Config
	store      domain.ImageStore
	identities domain.IdentityProvider
	files      storage.Storage
	validator  *ImageValidator
	allocator  *Allocator
	publisher  Publisher
	log        *zap.Logger
	now        func() time.Time
}

func NewService(cfg *config.Config, store domain.ImageStore, identities domain.IdentityProvider, files storage.Storage, publisher Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:        cfg,
		store:      store,
		identities: identities,
		files:      files,
		validator:  NewImageValidator(files),
		allocator:  NewAllocator(),
		publisher:  publisher,
		log:        log,
		now:        time.Now,
	}
}

// Upload ingests a multipart file.
func (s *Service) Upload(ctx context.Context, fileHeader *multipart.FileHeader) (*domain.ImageDescriptor, error) {
	if fileHeader == nil {
		return nil, ErrMissingFile
	}
	if fileHeader.Size > s.cfg.Upload.MaxSize {
		return nil, ErrFileTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrStorage, err)
	}
	defer file.Close()

	return s.Ingest(ctx, File{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Content:     file,
	})
}

func (s *Service) Ingest(ctx context.Context, f File) (*domain.ImageDescriptor, error) {
	if f.Content == nil {
		return nil, ErrMissingFile
	}
	maxSize := s.cfg.Upload.MaxSize
	if f.Size > maxSize {
		return nil, ErrFileTooLarge
	}
	if f.Size == 0 {
		return nil, ErrEmptyFile
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read: %v", ErrStorage, err)
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrEmptyFile
	}

	mimeType, err := ResolveMimeType(f.ContentType, head)
	if err != nil {
		return nil, err
	}

	body := io.MultiReader(bytes.NewReader(head), f.Content)
	obj, written, err := s.write(ctx, f.Name, mimeType, io.LimitReader(body, maxSize+1), f.Size)
	if err != nil {
		return nil, err
	}
	defer obj.Release(ctx)

	if written > maxSize {
		return nil, ErrFileTooLarge
	}

	dims, err := s.validator.Validate(ctx, obj, mimeType)
	if err != nil {
		s.log.Info("upload rejected", zap.String("original_name", f.Name), zap.Error(err))
		return nil, err
	}

	owner, err := s.identities.ResolveOrCreate(ctx, s.cfg.Identity.DemoKey)
	if err != nil {
		s.log.Error("failed to resolve identity", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	record := &domain.StoredImage{
		ID:           uuid.NewString(),
		Filename:     obj.name,
		OriginalName: f.Name,
		MimeType:     mimeType,
		Size:         written,
		Width:        dims.Width,
		Height:       dims.Height,
		IdentityID:   owner.ID,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.store.Create(ctx, record); err != nil {
		s.log.Error("failed to save image record, removing file",
			zap.String("filename", obj.name),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	obj.Commit()

	desc := domain.Describe(*record, s.cfg.Upload.PublicBaseURL)
	s.log.Info("image uploaded",
		zap.String("id", record.ID),
		zap.String("filename", record.Filename),
		zap.String("mime_type", record.MimeType),
		zap.Int64("size", record.Size),
		zap.Int("width", record.Width),
		zap.Int("height", record.Height))

	if s.publisher != nil {
		s.publisher.PublishImageCreated(desc)
	}
	return &desc, nil
}

// write stores body under a freshly allocated name, allocating again when
// the name is already taken. A collision is detected before any byte is
// consumed, so body can be retried.
func (s *Service) write(ctx context.Context, originalName, mimeType string, body io.Reader, size int64) (*pendingObject, int64, error) {
	for attempt := 1; attempt <= maxAllocateAttempts; attempt++ {
		name := s.allocator.Allocate(originalName, mimeType)
		written, err := s.files.Put(ctx, name, body, size, mimeType)
		if errors.Is(err, storage.ErrObjectExists) {
			s.log.Warn("storage name collision", zap.String("filename", name), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		return &pendingObject{name: name, files: s.files, log: s.log}, written, nil
	}
	return nil, 0, fmt.Errorf("%w: could not allocate a free storage name", ErrStorage)
}
