package repositories

import (
	"context"

	"etalase/internal/models"
)

// UserRepository defines the interface for admin account access.
type UserRepository interface {
	Create(ctx context.Context, user *models.AdminUser) error
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	GetByID(ctx context.Context, id string) (*models.AdminUser, error)
}
