package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"imageshelf/internal/domain"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) GetByKey(ctx context.Context, key string) (*domain.Identity, error) {
	var identity domain.Identity
	err := r.db.WithContext(ctx).Where("identity_key = ?", key).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	if err := r.db.WithContext(ctx).Create(identity).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrDuplicateRecord, err)
		}
		return err
	}
	return nil
}
