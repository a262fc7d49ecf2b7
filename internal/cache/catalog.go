package cache

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/safar/electronics-store/internal/models"
	"github.com/safar/electronics-store/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// fillTimeout bounds a shared fill, which outlives the request that started it.
const fillTimeout = 5 * time.Second

// Catalog serves public item reads through the cache. Cart and checkout
// code never goes through here; they read live rows.
type Catalog struct {
	db    *sql.DB
	cache ItemCache
	log   *zap.Logger
	sfg   singleflight.Group
}

func NewCatalog(db *sql.DB, cache ItemCache, log *zap.Logger) *Catalog {
	if cache == nil {
		cache = Nop{}
	}
	return &Catalog{db: db, cache: cache, log: log}
}

func (c *Catalog) Item(ctx context.Context, id int64) (*models.Item, error) {
	v, err := c.shared(ctx, "item:"+strconv.FormatInt(id, 10), func(ctx context.Context) (interface{}, error) {
		item, err := c.cache.GetItem(ctx, id)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("item cache read failed", zap.Int64("item_id", id), zap.Error(err))
		}

		item, err = store.GetItem(ctx, c.db, id)
		if err != nil {
			return nil, err
		}

		if err := c.cache.SetItem(ctx, item); err != nil {
			c.log.Warn("item cache fill failed", zap.Int64("item_id", id), zap.Error(err))
		}
		return item, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*models.Item), nil
}

func (c *Catalog) Featured(ctx context.Context) ([]models.Item, error) {
	v, err := c.shared(ctx, featuredKey, func(ctx context.Context) (interface{}, error) {
		items, err := c.cache.GetFeatured(ctx)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("featured cache read failed", zap.Error(err))
		}

		items, err = store.ListFeaturedItems(ctx, c.db)
		if err != nil {
			return nil, err
		}

		if err := c.cache.SetFeatured(ctx, items); err != nil {
			c.log.Warn("featured cache fill failed", zap.Error(err))
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]models.Item), nil
}

// shared runs fill once per key for all concurrent callers. The fill runs
// on a context detached from any one caller, so a caller that gives up only
// abandons its own wait.
func (c *Catalog) shared(ctx context.Context, key string, fill func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := c.sfg.DoChan(key, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()
		return fill(fillCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate is called after every admin write to an item.
func (c *Catalog) Invalidate(ctx context.Context, id int64) {
	if err := c.cache.InvalidateItem(ctx, id); err != nil {
		c.log.Warn("item cache invalidation failed", zap.Int64("item_id", id), zap.Error(err))
	}
}
