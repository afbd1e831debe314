// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore persists the ledger as a single JSON document:
//
//	{"approvals": {"<code>": {...request...}}}
//
// Every mutation rewrites the document through a temp file in the
// same directory, fsyncs it, and renames it over the original;
// readers never observe a partial write, and the rename is the
// transactional boundary. A missing file is an empty ledger; an
// unparsable file is ErrStoreCorrupt (fail-closed upstream).
type FileStore struct {
	path string
}

// ledgerDocument is the on-disk shape.
type ledgerDocument struct {
	Approvals map[string]Request `json:"approvals"`
}

// NewFileStore creates a file store backed by the JSON document at
// path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get returns the request with the given code.
func (s *FileStore) Get(ctx context.Context, code string) (Request, bool, error) {
	document, err := s.read()
	if err != nil {
		return Request{}, false, err
	}
	request, ok := document.Approvals[code]
	return request, ok, nil
}

// List returns all requests.
func (s *FileStore) List(ctx context.Context) ([]Request, error) {
	document, err := s.read()
	if err != nil {
		return nil, err
	}
	requests := make([]Request, 0, len(document.Approvals))
	for _, request := range document.Approvals {
		requests = append(requests, request)
	}
	return requests, nil
}

// Put inserts or replaces a request.
func (s *FileStore) Put(ctx context.Context, request Request) error {
	document, err := s.read()
	if err != nil {
		return err
	}
	document.Approvals[request.Code] = request
	return s.write(document)
}

// Delete removes a request. Absent codes are ignored.
func (s *FileStore) Delete(ctx context.Context, code string) error {
	document, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := document.Approvals[code]; !ok {
		return nil
	}
	delete(document.Approvals, code)
	return s.write(document)
}

// DeleteExpired removes every request expired at now.
func (s *FileStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	document, err := s.read()
	if err != nil {
		return 0, err
	}

	removed := 0
	for code, request := range document.Approvals {
		if request.Expired(now) {
			delete(document.Approvals, code)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.write(document)
}

// Close is a no-op; the file store holds no open resources.
func (s *FileStore) Close() error { return nil }

// read loads the document, treating a missing file as empty.
func (s *FileStore) read() (*ledgerDocument, error) {
	document := &ledgerDocument{Approvals: make(map[string]Request)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return document, nil
		}
		return nil, fmt.Errorf("reading approval ledger: %w", err)
	}

	if err := json.Unmarshal(data, document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	if document.Approvals == nil {
		document.Approvals = make(map[string]Request)
	}
	return document, nil
}

// write replaces the document atomically: temp file in the same
// directory, fsync, rename.
func (s *FileStore) write(document *ledgerDocument) error {
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding approval ledger: %w", err)
	}

	directory := filepath.Dir(s.path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	temp, err := os.CreateTemp(directory, ".approvals-*.tmp")
	if err != nil {
		return fmt.Errorf("creating ledger temp file: %w", err)
	}
	tempPath := temp.Name()
	defer os.Remove(tempPath)

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return fmt.Errorf("writing ledger temp file: %w", err)
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		return fmt.Errorf("syncing ledger temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("closing ledger temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0o600); err != nil {
		return fmt.Errorf("restricting ledger permissions: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("replacing approval ledger: %w", err)
	}
	return nil
}
