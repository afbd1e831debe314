// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrStoreCorrupt reports that the persisted ledger could not be
// read or parsed. The gate treats this as a fail-closed condition.
var ErrStoreCorrupt = errors.New("approval ledger corrupt")

// Store is the persistence boundary for approval requests. Each
// implementation is a transactional single-writer store: a mutation
// either lands completely or not at all, and concurrent gate
// invocations serialize on the store's own locking (SQLite write
// lock, or atomic rename for the file store).
//
// The Ledger contains all lifecycle logic; a Store only moves
// requests in and out of persistence.
type Store interface {
	// Get returns the request with the given code.
	Get(ctx context.Context, code string) (Request, bool, error)

	// List returns all requests, in no particular order.
	List(ctx context.Context) ([]Request, error)

	// Put inserts or replaces a request, keyed by code.
	Put(ctx context.Context, request Request) error

	// Delete removes a request. Deleting an absent code is not an
	// error.
	Delete(ctx context.Context, code string) error

	// DeleteExpired removes every request whose expiry is at or
	// before now, returning the number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// Close releases store resources.
	Close() error
}

// Store backends selectable by configuration.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// OpenStore builds the store a configuration names. An unknown
// backend is an error, never a silent fallback.
func OpenStore(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		return NewSQLStore(path, logger)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}
