package cache

import (
	"context"
	"errors"

	"github.com/safar/electronics-store/internal/models"
)

type ItemCache interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	SetItem(ctx context.Context, item *models.Item) error
	GetFeatured(ctx context.Context) ([]models.Item, error)
	SetFeatured(ctx context.Context, items []models.Item) error
	// InvalidateItem drops the item and every list that may contain it.
	InvalidateItem(ctx context.Context, id int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// Nop is used when no Redis is configured. Every read misses.
type Nop struct{}

func (Nop) GetItem(context.Context, int64) (*models.Item, error) { return nil, ErrCacheMiss }

func (Nop) SetItem(context.Context, *models.Item) error { return nil }

func (Nop) GetFeatured(context.Context) ([]models.Item, error) { return nil, ErrCacheMiss }

func (Nop) SetFeatured(context.Context, []models.Item) error { return nil }

func (Nop) InvalidateItem(context.Context, int64) error { return nil }
