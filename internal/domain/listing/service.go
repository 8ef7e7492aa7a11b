package listing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"imageshelf/internal/config"
	"imageshelf/internal/domain"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is one newest-first slice of the stored images.
type Page struct {
	Total  int64                    `json:"total"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
	Items  []domain.ImageDescriptor `json:"items"`
}

type Service struct {
	cfg   *config.Config
	store domain.ImageStore
	log   *zap.Logger
}

func NewService(cfg *config.Config, store domain.ImageStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, store: store, log: log}
}

// Clamp parses raw query values. Unparsable values fall back to the
// defaults and out-of-range values are pulled into range.
func Clamp(rawLimit, rawOffset string) (limit, offset int) {
	limit = DefaultLimit
	if v, err := strconv.Atoi(strings.TrimSpace(rawLimit)); err == nil {
		limit = v
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if v, err := strconv.Atoi(strings.TrimSpace(rawOffset)); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func (s *Service) List(ctx context.Context, limit, offset int) (*Page, error) {
	limit, offset = clampInts(limit, offset)

	records, total, err := s.store.List(ctx, limit, offset)
	if err != nil {
		s.log.Error("failed to list images", zap.Int("limit", limit), zap.Int("offset", offset), zap.Error(err))
		return nil, fmt.Errorf("list images: %w", err)
	}

	items := make([]domain.ImageDescriptor, 0, len(records))
	for _, rec := range records {
		items = append(items, domain.Describe(rec, s.cfg.Upload.PublicBaseURL))
	}
	return &Page{Total: total, Limit: limit, Offset: offset, Items: items}, nil
}

func clampInts(limit, offset int) (int, int) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
