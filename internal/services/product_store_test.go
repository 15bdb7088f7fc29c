package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"etalase/internal/changefeed"
	"etalase/internal/models"
	"etalase/internal/repositories"
	"etalase/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) List(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newMemoryStore(t *testing.T) (*services.ProductStore, *changefeed.Broker) {
	t.Helper()
	broker := changefeed.NewBroker(16)
	t.Cleanup(broker.Close)
	return services.NewProductStore(repositories.NewMemoryProductRepository(), broker, broker), broker
}

func payload(name, description, price string) models.ProductPayload {
	return models.ProductPayload{
		Name:        name,
		Description: description,
		Price:       decimal.RequireFromString(price),
		InStock:     true,
	}
}

func waitForSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestProductStore_CreateThenListNewestFirst(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, payload("Keyboard", "Mechanical", "75"))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := store.Create(ctx, payload("Mouse", "Wireless", "25.50"))
	require.NoError(t, err)

	products, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, second.ID, products[0].ID)
	assert.Equal(t, first.ID, products[1].ID)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("25.50")))
}

func TestProductStore_UpdateChangesOnlyTargetRow(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	keep, err := store.Create(ctx, payload("Laptop", "Fast", "1200"))
	require.NoError(t, err)
	target, err := store.Create(ctx, payload("Monitor", "27 inch", "200"))
	require.NoError(t, err)

	changed := payload("Monitor Pro", "32 inch", "350")
	changed.InStock = false
	updated, err := store.Update(ctx, target.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, target.ID, updated.ID)
	assert.Equal(t, "Monitor Pro", updated.Name)
	assert.False(t, updated.InStock)

	untouched, err := store.Get(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, *keep, *untouched)
}

func TestProductStore_UpdateMissingIsWriteFailure(t *testing.T) {
	store, _ := newMemoryStore(t)

	_, err := store.Update(context.Background(), "missing", payload("X", "Y", "1"))
	assert.ErrorIs(t, err, models.ErrWriteFailure)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestProductStore_DeleteIsIdempotent(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	p, err := store.Create(ctx, payload("Fan", "120mm", "499.50"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, p.ID))
	require.NoError(t, store.Delete(ctx, p.ID))

	products, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestProductStore_CreateRejectsInvalidPayload(t *testing.T) {
	store, _ := newMemoryStore(t)

	_, err := store.Create(context.Background(), payload("", "desc", "1"))
	assert.ErrorIs(t, err, models.ErrWriteFailure)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = store.Create(context.Background(), payload("Name", "desc", "-1"))
	assert.ErrorIs(t, err, models.ErrInvalidPrice)
}

func TestProductStore_WritesNotifySubscribers(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	signal := make(chan struct{}, 8)
	sub := store.SubscribeToChanges(func() { signal <- struct{}{} })
	defer sub.Unsubscribe()

	p, err := store.Create(ctx, payload("Fan", "120mm", "10"))
	require.NoError(t, err)
	waitForSignal(t, signal)

	_, err = store.Update(ctx, p.ID, payload("Fan", "140mm", "12"))
	require.NoError(t, err)
	waitForSignal(t, signal)

	require.NoError(t, store.Delete(ctx, p.ID))
	waitForSignal(t, signal)
}

func TestProductStore_ExternalDeleteThenRefetch(t *testing.T) {
	broker := changefeed.NewBroker(4)
	defer broker.Close()
	repo := repositories.NewMemoryProductRepository()
	store := services.NewProductStore(repo, broker, broker)
	ctx := context.Background()

	p, err := store.Create(ctx, payload("Fan", "120mm", "10"))
	require.NoError(t, err)

	refetched := make(chan []models.Product, 1)
	sub := store.SubscribeToChanges(func() {
		products, err := store.List(ctx)
		if err == nil {
			refetched <- products
		}
	})
	defer sub.Unsubscribe()

	// another admin deletes the row and the feed announces it
	require.NoError(t, repo.Delete(ctx, p.ID))
	require.NoError(t, broker.Publish(ctx, changefeed.Event{Table: "products", Op: changefeed.OpDelete, ID: p.ID}))

	select {
	case products := <-refetched:
		for _, got := range products {
			assert.NotEqual(t, p.ID, got.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never re-fetched")
	}
}

func TestProductStore_ListFailureIsFetchFailure(t *testing.T) {
	repo := new(MockProductRepository)
	broker := changefeed.NewBroker(1)
	defer broker.Close()
	store := services.NewProductStore(repo, broker, broker)

	ctx := context.Background()
	repo.On("List", ctx).Return(nil, errors.New("connection refused")).Once()

	products, err := store.List(ctx)
	assert.Nil(t, products)
	assert.ErrorIs(t, err, models.ErrFetchFailure)
	assert.Contains(t, err.Error(), "connection refused")
	repo.AssertExpectations(t)
}

func TestProductStore_CreateFailureIsWriteFailureAndSilent(t *testing.T) {
	repo := new(MockProductRepository)
	broker := changefeed.NewBroker(1)
	defer broker.Close()
	store := services.NewProductStore(repo, broker, broker)

	signal := make(chan struct{}, 1)
	sub := store.SubscribeToChanges(func() { signal <- struct{}{} })
	defer sub.Unsubscribe()

	ctx := context.Background()
	repo.On("Create", ctx, mock.AnythingOfType("*models.Product")).Return(errors.New("unique violation")).Once()

	_, err := store.Create(ctx, payload("Fan", "120mm", "10"))
	assert.ErrorIs(t, err, models.ErrWriteFailure)

	select {
	case <-signal:
		t.Fatal("failed write must not notify")
	case <-time.After(50 * time.Millisecond):
	}
	repo.AssertExpectations(t)
}
