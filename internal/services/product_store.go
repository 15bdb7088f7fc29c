package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"etalase/internal/changefeed"
	"etalase/internal/models"
	"etalase/internal/repositories"
)

// ProductStore performs product CRUD and announces every write on the change feed.
type ProductStore struct {
	repo      repositories.ProductRepository
	publisher changefeed.Publisher
	feed      changefeed.Subscriber
}

// NewProductStore creates a ProductStore. Writes are announced through publisher;
// SubscribeToChanges listens on feed. They are the same Broker unless a relay is in use.
func NewProductStore(repo repositories.ProductRepository, publisher changefeed.Publisher, feed changefeed.Subscriber) *ProductStore {
	return &ProductStore{
		repo:      repo,
		publisher: publisher,
		feed:      feed,
	}
}

// List returns all products, newest first.
func (s *ProductStore) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrFetchFailure, err)
	}
	return products, nil
}

// Get returns one product. A missing ID yields models.ErrProductNotFound.
func (s *ProductStore) Get(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", models.ErrFetchFailure, err)
	}
	return product, nil
}

// Create inserts a product built from payload.
func (s *ProductStore) Create(ctx context.Context, payload models.ProductPayload) (*models.Product, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrWriteFailure, err)
	}
	product := &models.Product{}
	product.Apply(payload)
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrWriteFailure, err)
	}
	s.notify(ctx, changefeed.OpInsert, product.ID)
	return product, nil
}

// Update overwrites every mutable field of the product with the given ID.
func (s *ProductStore) Update(ctx context.Context, id string, payload models.ProductPayload) (*models.Product, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrWriteFailure, err)
	}
	product := &models.Product{ID: id}
	product.Apply(payload)
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrWriteFailure, err)
	}
	s.notify(ctx, changefeed.OpUpdate, id)

	fresh, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.Printf("Warning: product %s updated but could not be reloaded: %v", id, err)
		return product, nil
	}
	return fresh, nil
}

// Delete removes the product. Deleting an unknown ID succeeds.
func (s *ProductStore) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", models.ErrWriteFailure, err)
	}
	s.notify(ctx, changefeed.OpDelete, id)
	return nil
}

// SubscribeToChanges calls handler once per change notification, whatever its
// kind. The caller must Unsubscribe the returned handle when it is torn down.
func (s *ProductStore) SubscribeToChanges(handler func()) *changefeed.Subscription {
	return s.feed.Subscribe(func(changefeed.Event) {
		handler()
	})
}

func (s *ProductStore) notify(ctx context.Context, op changefeed.Op, id string) {
	event := changefeed.Event{
		Table: models.Product{}.TableName(),
		Op:    op,
		ID:    id,
		At:    time.Now(),
	}
	// the write already happened; a lost notification is healed by the next resync
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Printf("Warning: failed to publish %s event for product %s: %v", op, id, err)
	}
}
