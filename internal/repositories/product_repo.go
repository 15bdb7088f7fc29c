package repositories

import (
	"context"

	"etalase/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	// List returns every product, newest first.
	List(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	// Update overwrites the mutable fields of the product with the same ID.
	Update(ctx context.Context, product *models.Product) error
	// Delete removes the product. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error
}
