package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"imageshelf/internal/domain"
)

var ErrEmptyKey = errors.New("identity key is empty")

// Service is the placeholder identity provider: the first upload for a key
// creates the identity, later calls return the same one.
type Service struct {
	store domain.IdentityStore
	log   *zap.Logger
	group singleflight.Group
	now   func() time.Time
}

func NewService(store domain.IdentityStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log, now: time.Now}
}

func (s *Service) ResolveOrCreate(ctx context.Context, key string) (*domain.Identity, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return nil, ErrEmptyKey
	}

	// The shared lookup outlives any one caller; each caller still stops
	// waiting when its own context ends.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.resolve(context.WithoutCancel(ctx), key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		identity := *res.Val.(*domain.Identity)
		return &identity, nil
	}
}

func (s *Service) resolve(ctx context.Context, key string) (*domain.Identity, error) {
	identity, err := s.store.GetByKey(ctx, key)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	identity = &domain.Identity{
		ID:          uuid.NewString(),
		Key:         key,
		DisplayName: displayName(key),
		CreatedAt:   s.now().UTC(),
	}
	err = s.store.Create(ctx, identity)
	if err == nil {
		s.log.Info("identity created", zap.String("identity_id", identity.ID), zap.String("key", key))
		return identity, nil
	}
	if !errors.Is(err, domain.ErrDuplicateRecord) {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	// another process created it first
	identity, err = s.store.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup identity after conflict: %w", err)
	}
	return identity, nil
}

func displayName(key string) string {
	if at := strings.IndexByte(key, '@'); at > 0 {
		return key[:at]
	}
	return key
}
