// Package store provides the key-value persistence behind the workbook snapshot.
//
// Three implementations share the Store interface: MemoryStore for tests and
// ephemeral deployments, FileStore writing one file per key, and SQLiteStore
// keeping every key in a single kv table.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Store is a byte-oriented key-value store. Get returns nil, nil for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Supported drivers
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrInvalidKey is returned for empty keys or keys that would escape a file store directory
var ErrInvalidKey = errors.New("invalid store key")

// Open creates the store selected by driver. path is a directory for the file
// driver and a database file for the sqlite driver; the memory driver ignores it.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		return NewFileStore(path)
	case DriverSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if key == "." || key == ".." || filepath.Base(key) != key || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
