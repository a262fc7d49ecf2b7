package cache

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/safar/electronics-store/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func itemRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "sku", "name", "description", "category_id", "category",
		"unit_price", "quantity_available", "is_available", "is_featured", "image_url",
		"created_at", "updated_at", "version",
	}).AddRow(7, "TV-55", "55in TV", "", nil, "", "499.99", 4, true, true, "", now, now, 1)
}

func TestCatalogItem_ReadThrough(t *testing.T) {
	rc, mr := setupTestRedis(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM items i").WithArgs(int64(7)).WillReturnRows(itemRows())

	catalog := NewCatalog(db, rc, zap.NewNop())
	ctx := context.Background()

	first, err := catalog.Item(ctx, 7)
	require.NoError(t, err)
	assert.True(t, mr.Exists("item:7"))

	second, err := catalog.Item(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogItem_NotFoundIsNotCached(t *testing.T) {
	rc, mr := setupTestRedis(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM items i").WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewCatalog(db, rc, zap.NewNop()).Item(context.Background(), 9)

	assert.ErrorIs(t, err, database.ErrItemNotFound)
	assert.False(t, mr.Exists("item:9"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogFeatured_WithoutRedis(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("is_featured").WillReturnRows(itemRows())
	mock.ExpectQuery("is_featured").WillReturnRows(itemRows())

	catalog := NewCatalog(db, nil, zap.NewNop())

	for i := 0; i < 2; i++ {
		items, err := catalog.Featured(context.Background())
		require.NoError(t, err)
		assert.Len(t, items, 1)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogItem_CancelledCallerDoesNotAbortFill(t *testing.T) {
	rc, mr := setupTestRedis(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM items i").WithArgs(int64(7)).
		WillDelayFor(50 * time.Millisecond).
		WillReturnRows(itemRows())

	catalog := NewCatalog(db, rc, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = catalog.Item(ctx, 7)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Eventually(t, func() bool { return mr.Exists("item:7") }, time.Second, 10*time.Millisecond)

	item, err := catalog.Item(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "55in TV", item.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
