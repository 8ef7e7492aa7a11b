package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"

	"imageshelf/internal/domain"
)

const (
	imagePrefix     = "img:"
	imageNamePrefix = "imgname:"
	identityPrefix  = "ident:"
)

// BadgerStore is an embedded Metadata Store. Image keys embed an inverted
// creation timestamp so forward iteration yields newest first.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *BadgerStore) Images() *BadgerImageStore { return &BadgerImageStore{db: s.db} }

func (s *BadgerStore) Identities() *BadgerIdentityStore { return &BadgerIdentityStore{db: s.db} }

type BadgerImageStore struct {
	db *badger.DB
}

type BadgerIdentityStore struct {
	db *badger.DB
}

// imageKey sorts newest first; equal timestamps fall back to id ascending.
func imageKey(img *domain.StoredImage) []byte {
	inverted := math.MaxInt64 - img.CreatedAt.UnixNano()
	return []byte(fmt.Sprintf("%s%019d:%s", imagePrefix, inverted, img.ID))
}

func (s *BadgerImageStore) Create(ctx context.Context, img *domain.StoredImage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("failed to marshal image: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		nameKey := []byte(imageNamePrefix + img.Filename)
		if _, err := txn.Get(nameKey); err == nil {
			return domain.ErrDuplicateRecord
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(nameKey, []byte(img.ID)); err != nil {
			return err
		}
		return txn.Set(imageKey(img), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateRecord, err)
	}
	return err
}

func (s *BadgerImageStore) List(ctx context.Context, limit, offset int) ([]domain.StoredImage, int64, error) {
	images := make([]domain.StoredImage, 0, limit)
	var total int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(imagePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			idx := total
			total++
			if idx < int64(offset) || len(images) >= limit {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			var img domain.StoredImage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &img)
			}); err != nil {
				return err
			}
			images = append(images, img)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return images, total, nil
}

func (s *BadgerImageStore) ExistsByFilename(_ context.Context, filename string) (bool, error) {
	var exists bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(imageNamePrefix + filename))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

func (s *BadgerIdentityStore) GetByKey(_ context.Context, key string) (*domain.Identity, error) {
	var identity domain.Identity
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(identityPrefix + key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrIdentityNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &identity)
		})
	})
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (s *BadgerIdentityStore) Create(ctx context.Context, identity *domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	key := []byte(identityPrefix + identity.Key)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return domain.ErrDuplicateRecord
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateRecord, err)
	}
	return err
}
