package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassPermanent},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrorClassDeadlock},
		{"lock not available", &pq.Error{Code: "55P03"}, ErrorClassTransient},
		{"unique violation", &pq.Error{Code: "23505"}, ErrorClassPermanent},
		{"wrapped serialization", fmt.Errorf("update: %w", &pq.Error{Code: "40001"}), ErrorClassSerialization},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent},
		{"domain error", ErrEmptyCart, ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.False(t, IsRetryable(ErrInsufficientStock))
}

func TestErrorTaxonomy(t *testing.T) {
	assert.ErrorIs(t, ErrItemNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrPaymentNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrItemReferenced, ErrConflict)
	assert.ErrorIs(t, ErrOptimisticLockFailed, ErrConflict)
	assert.NotErrorIs(t, ErrItemNotFound, ErrConflict)

	stockErr := fmt.Errorf("validate cart: %w", &InsufficientStockError{
		ItemID: 7, ItemName: "Dell XPS 15", Available: 3, Requested: 10,
	})
	assert.ErrorIs(t, stockErr, ErrInsufficientStock)

	var detail *InsufficientStockError
	if assert.True(t, errors.As(stockErr, &detail)) {
		assert.Equal(t, 3, detail.Available)
		assert.Equal(t, 10, detail.Requested)
	}
	assert.Contains(t, stockErr.Error(), "available 3, requested 10")

	argErr := InvalidArgument("quantity", "must be a positive integer")
	assert.ErrorIs(t, argErr, ErrInvalidArgument)
	assert.Equal(t, "quantity: must be a positive integer", argErr.Error())
}

func TestConstraintHelpers(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
	assert.True(t, IsLockNotAvailable(&pq.Error{Code: "55P03"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
