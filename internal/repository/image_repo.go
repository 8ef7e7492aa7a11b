package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"imageshelf/internal/domain"
)

type ImageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

func (r *ImageRepository) Create(ctx context.Context, img *domain.StoredImage) error {
	if err := r.db.WithContext(ctx).Create(img).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrDuplicateRecord, err)
		}
		return err
	}
	return nil
}

// List reads the page and the total in one transaction so they agree when
// nothing is written concurrently.
func (r *ImageRepository) List(ctx context.Context, limit, offset int) ([]domain.StoredImage, int64, error) {
	images := make([]domain.StoredImage, 0, limit)
	var total int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.StoredImage{}).Count(&total).Error; err != nil {
			return err
		}
		if total == 0 || int64(offset) >= total {
			return nil
		}
		return tx.Order("created_at DESC").Order("id ASC").
			Limit(limit).Offset(offset).
			Find(&images).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return images, total, nil
}

func (r *ImageRepository) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.StoredImage{}).
		Where("filename = ?", filename).
		Count(&count).Error
	return count > 0, err
}
