// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/toolgate-foundation/toolgate/lib/sqlitepool"
)

// sqlSchema is the approvals table. Timestamps are unix seconds,
// the same precision the signatures cover.
const sqlSchema = `
CREATE TABLE IF NOT EXISTS approvals (
	code               TEXT PRIMARY KEY,
	server             TEXT NOT NULL,
	tool               TEXT NOT NULL,
	args               TEXT NOT NULL,
	args_digest        TEXT NOT NULL,
	phrase             TEXT NOT NULL,
	status             TEXT NOT NULL,
	created_at         INTEGER NOT NULL,
	expires_at         INTEGER NOT NULL,
	approved_at        INTEGER,
	pending_signature  TEXT NOT NULL,
	approved_signature TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS approvals_expiry ON approvals (expires_at);
`

// SQLStore persists the ledger in a SQLite database. Row-level
// transactions and SQLite's write lock make each mutation a
// transactional boundary across concurrent gate invocations.
type SQLStore struct {
	pool *sqlitepool.Pool
}

// NewSQLStore opens (and if necessary creates) the approval database
// at path. The caller must Close the store.
func NewSQLStore(path string, logger *slog.Logger) (*SQLStore, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, sqlSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening approval database: %w", err)
	}
	return &SQLStore{pool: pool}, nil
}

// Get returns the request with the given code.
func (s *SQLStore) Get(ctx context.Context, code string) (Request, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Request{}, false, err
	}
	defer s.pool.Put(conn)

	var request Request
	found := false
	err = sqlitex.Execute(conn, selectColumns+" WHERE code = ?", &sqlitex.ExecOptions{
		Args: []any{code},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			request = scanRequest(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return Request{}, false, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	return request, found, nil
}

// List returns all requests.
func (s *SQLStore) List(ctx context.Context) ([]Request, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var requests []Request
	err = sqlitex.Execute(conn, selectColumns, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			requests = append(requests, scanRequest(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	return requests, nil
}

// Put inserts or replaces a request.
func (s *SQLStore) Put(ctx context.Context, request Request) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("approval store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	var approvedAt any
	if request.ApprovedAt != nil {
		approvedAt = request.ApprovedAt.Unix()
	}

	err = sqlitex.Execute(conn, `
		INSERT OR REPLACE INTO approvals
		(code, server, tool, args, args_digest, phrase, status,
		 created_at, expires_at, approved_at,
		 pending_signature, approved_signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				request.Code,
				request.Server,
				request.Tool,
				request.Args,
				request.ArgsDigest,
				request.Phrase,
				string(request.Status),
				request.CreatedAt.Unix(),
				request.ExpiresAt.Unix(),
				approvedAt,
				request.PendingSignature,
				request.ApprovedSignature,
			},
		})
	if err != nil {
		return fmt.Errorf("approval store: put %s: %w", request.Code, err)
	}
	return nil
}

// Delete removes a request. Absent codes are ignored.
func (s *SQLStore) Delete(ctx context.Context, code string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM approvals WHERE code = ?", &sqlitex.ExecOptions{
		Args: []any{code},
	})
	if err != nil {
		return fmt.Errorf("approval store: delete %s: %w", code, err)
	}
	return nil
}

// DeleteExpired removes every request expired at now.
func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM approvals WHERE expires_at <= ?", &sqlitex.ExecOptions{
		Args: []any{now.Unix()},
	})
	if err != nil {
		return 0, fmt.Errorf("approval store: sweep: %w", err)
	}
	return conn.Changes(), nil
}

// Close closes the underlying pool.
func (s *SQLStore) Close() error {
	return s.pool.Close()
}

const selectColumns = `
	SELECT code, server, tool, args, args_digest, phrase, status,
	       created_at, expires_at, approved_at,
	       pending_signature, approved_signature
	FROM approvals`

// scanRequest reads one approvals row. Column order matches
// selectColumns.
func scanRequest(stmt *sqlite.Stmt) Request {
	request := Request{
		Code:              stmt.ColumnText(0),
		Server:            stmt.ColumnText(1),
		Tool:              stmt.ColumnText(2),
		Args:              stmt.ColumnText(3),
		ArgsDigest:        stmt.ColumnText(4),
		Phrase:            stmt.ColumnText(5),
		Status:            Status(stmt.ColumnText(6)),
		CreatedAt:         time.Unix(stmt.ColumnInt64(7), 0).UTC(),
		ExpiresAt:         time.Unix(stmt.ColumnInt64(8), 0).UTC(),
		PendingSignature:  stmt.ColumnText(10),
		ApprovedSignature: stmt.ColumnText(11),
	}
	if stmt.ColumnType(9) != sqlite.TypeNull {
		approvedAt := time.Unix(stmt.ColumnInt64(9), 0).UTC()
		request.ApprovedAt = &approvedAt
	}
	return request
}
