// Package catalog resolves menu items for the order engine through a
// read-through cache.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/cache"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

// Catalog looks up menu items. Cached entries may be stale for up to the TTL,
// which is the window in which a price edit is not yet snapshotted into new items.
type Catalog struct {
	store  store.CatalogStore
	cache  cache.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// New creates a catalog. A nil cache or a zero ttl disables caching.
func New(s store.CatalogStore, c cache.Cache, ttl time.Duration, log *logger.Logger) *Catalog {
	return &Catalog{store: s, cache: c, ttl: ttl, logger: log}
}

func cacheKey(id int64) string {
	return "menu_item:" + strconv.FormatInt(id, 10)
}

func (c *Catalog) cached() bool {
	return c.cache != nil && c.ttl > 0
}

// FindMenuItem returns the menu item or a NotFound error
func (c *Catalog) FindMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	if c.cached() {
		if item, ok := c.fromCache(ctx, id); ok {
			return item, nil
		}
	}

	item, err := c.store.GetMenuItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.MenuItemNotFound("catalog.FindMenuItem", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load menu item %d: %w", id, err)
	}

	if c.cached() {
		c.toCache(ctx, item)
	}
	return item, nil
}

// Invalidate drops a cached entry so the next lookup reads the store
func (c *Catalog) Invalidate(ctx context.Context, id int64) error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.Delete(ctx, cacheKey(id)); err != nil {
		return fmt.Errorf("failed to invalidate menu item %d: %w", id, err)
	}
	return nil
}

// Cache failures degrade to a store read; they are logged, never returned.
func (c *Catalog) fromCache(ctx context.Context, id int64) (*models.MenuItem, bool) {
	raw, ok, err := c.cache.Get(ctx, cacheKey(id))
	if err != nil {
		c.logger.Error("menu_cache_read_failed", "Failed to read menu item from cache", "", err, map[string]interface{}{
			"menu_item_id": id,
		})
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var item models.MenuItem
	if err := json.Unmarshal(raw, &item); err != nil {
		c.logger.Error("menu_cache_decode_failed", "Discarding undecodable cache entry", "", err, map[string]interface{}{
			"menu_item_id": id,
		})
		_ = c.cache.Delete(ctx, cacheKey(id))
		return nil, false
	}
	return &item, true
}

func (c *Catalog) toCache(ctx context.Context, item *models.MenuItem) {
	raw, err := json.Marshal(item)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(item.ID), raw, c.ttl); err != nil {
		c.logger.Error("menu_cache_write_failed", "Failed to cache menu item", "", err, map[string]interface{}{
			"menu_item_id": item.ID,
		})
	}
}
