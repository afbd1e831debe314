// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLStore(filepath.Join(t.TempDir(), "approvals.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLStoreRoundTrip(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	expiry := testStart.Add(TTL)
	original := testRequest("ABCDEF", expiry)
	approvedAt := testStart.Add(time.Minute)
	original.Status = StatusApproved
	original.ApprovedAt = &approvedAt
	original.ApprovedSignature = "YXBwcm92ZWQ="

	if err := store.Put(ctx, original); err != nil {
		t.Fatalf("Put: %v", err)
	}

	request, found, err := store.Get(ctx, "ABCDEF")
	if err != nil || !found {
		t.Fatalf("Get: %v, found=%v", err, found)
	}
	if request.Status != StatusApproved {
		t.Errorf("status = %q, want approved", request.Status)
	}
	if !request.ExpiresAt.Equal(expiry) {
		t.Errorf("expiresAt = %v, want %v", request.ExpiresAt, expiry)
	}
	if request.ApprovedAt == nil || !request.ApprovedAt.Equal(approvedAt) {
		t.Errorf("approvedAt = %v, want %v", request.ApprovedAt, approvedAt)
	}
	if request.ApprovedSignature != "YXBwcm92ZWQ=" {
		t.Errorf("approvedSignature = %q", request.ApprovedSignature)
	}
}

func TestSQLStoreNullApprovedAt(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testRequest("ABCDEF", testStart.Add(TTL))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	request, _, err := store.Get(ctx, "ABCDEF")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if request.ApprovedAt != nil {
		t.Errorf("approvedAt = %v, want nil", request.ApprovedAt)
	}
}

func TestSQLStorePutReplaces(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	request := testRequest("ABCDEF", testStart.Add(TTL))
	if err := store.Put(ctx, request); err != nil {
		t.Fatalf("Put: %v", err)
	}
	request.Status = StatusApproved
	if err := store.Put(ctx, request); err != nil {
		t.Fatalf("replace Put: %v", err)
	}

	requests, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("List returned %d requests, want 1", len(requests))
	}
	if requests[0].Status != StatusApproved {
		t.Errorf("status = %q, want approved", requests[0].Status)
	}
}

func TestSQLStoreDeleteExpired(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testRequest("STALE1", testStart)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, testRequest("FRESH2", testStart.Add(time.Hour))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	removed, err := store.DeleteExpired(ctx, testStart.Add(time.Minute))
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, found, _ := store.Get(ctx, "FRESH2"); !found {
		t.Error("fresh entry removed by sweep")
	}
}

func TestLedgerOverSQLStore(t *testing.T) {
	// The full lifecycle must behave identically over the SQLite
	// store: same one-time-use outcome as the file store.
	store := newSQLStore(t)
	ledger := newLedgerOver(t, store)
	ctx := context.Background()

	request, err := ledger.CreateRequest(ctx, "db", "dropTable", `{"table": "users"}`, "APPROVE DB")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if _, err := ledger.ValidateConfirmation(ctx, "APPROVE DB", request.Code); err != nil {
		t.Fatalf("ValidateConfirmation: %v", err)
	}

	grant, err := ledger.CheckAndConsume(ctx, "db", "dropTable")
	if err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	if grant == nil {
		t.Fatal("no grant after confirmation")
	}

	grant, err = ledger.CheckAndConsume(ctx, "db", "dropTable")
	if err != nil {
		t.Fatalf("second CheckAndConsume: %v", err)
	}
	if grant != nil {
		t.Error("approval consumed twice over SQL store")
	}
}
