// Package users reads the identity rows referenced by orders and
// notifications. Accounts are provisioned by the upstream identity service;
// this API only looks them up.
package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/models"
)

// UserRepository defines the read surface over user rows.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Repository is the gorm-backed user store.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a user repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads one user.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
