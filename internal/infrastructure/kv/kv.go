// Package kv opens Badger databases and keeps the TTL cache on top of them.
package kv

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Open opens a Badger database in dir. An empty dir keeps it in memory.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return db, nil
}
