package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"MarketNewsroom/internal/ports"
)

const cachePrefix = "cache:"

// Cache stores JSON values with a per-entry TTL.
type Cache struct {
	db *badger.DB
}

var _ ports.Cache = (*Cache)(nil)

// NewCache wraps an open database.
func NewCache(db *badger.DB) *Cache {
	return &Cache{db: db}
}

// Get decodes the value under key into dst. Expired keys read as misses.
func (c *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cachePrefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key. A non-positive ttl never expires.
func (c *Cache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	entry := badger.NewEntry([]byte(cachePrefix+key), data)
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
