package domain

import (
	"context"
	"errors"
	"time"
)

var ErrIdentityNotFound = errors.New("identity not found")

// Identity is the placeholder owner that uploads are attributed to.
type Identity struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	Key         string    `gorm:"column:identity_key;uniqueIndex;not null" json:"key"`
	DisplayName string    `gorm:"column:display_name" json:"display_name"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (Identity) TableName() string { return "identities" }

type IdentityStore interface {
	GetByKey(ctx context.Context, key string) (*Identity, error)
	// Create returns ErrDuplicateRecord when the key already exists.
	Create(ctx context.Context, identity *Identity) error
}

// IdentityProvider resolves the identity uploads are attributed to.
// Implementations must be idempotent for a fixed key.
type IdentityProvider interface {
	ResolveOrCreate(ctx context.Context, key string) (*Identity, error)
}
