package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, mock
}

func itemRow(id int64, name, price string, stock int, available bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "sku", "name", "description", "category_id", "category",
		"unit_price", "quantity_available", "is_available", "is_featured", "image_url",
		"created_at", "updated_at", "version",
	}).AddRow(id, "SKU-1", name, "", nil, "", price, stock, available, false, "", fixedTime, fixedTime, 1)
}

func cartRow(id int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, fixedTime, fixedTime)
}

func emptyCartRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "created_at", "updated_at"})
}

func cartLineRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "cart_id", "item_id", "name", "quantity", "unit_price", "created_at", "updated_at", "version",
	})
}
