// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/toolgate-foundation/toolgate/lib/clock"
	"github.com/toolgate-foundation/toolgate/lib/protectkey"
)

// testStart is an arbitrary fixed time for fake clocks.
var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestLedger builds a ledger over a file store in a temp dir with
// a fake clock and a freshly generated key.
func newTestLedger(t *testing.T) (*Ledger, *clock.FakeClock, Store) {
	t.Helper()

	key, err := protectkey.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	t.Cleanup(func() { key.Close() })

	store := NewFileStore(filepath.Join(t.TempDir(), "approvals.json"))
	fake := clock.Fake(testStart)

	ledger, err := New(store, key, fake, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ledger, fake, store
}

// newLedgerOver builds a ledger on an existing store with a fake
// clock at testStart.
func newLedgerOver(t *testing.T, store Store) *Ledger {
	t.Helper()

	key, err := protectkey.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	t.Cleanup(func() { key.Close() })

	ledger, err := New(store, key, clock.Fake(testStart), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ledger
}

func createTestRequest(t *testing.T, l *Ledger) *Request {
	t.Helper()
	request, err := l.CreateRequest(context.Background(), "db", "dropTable", `{"table": "users"}`, "APPROVE DB")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return request
}

func TestCreateRequestShape(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	request := createTestRequest(t, ledger)

	if len(request.Code) != CodeLength {
		t.Errorf("code length = %d, want %d", len(request.Code), CodeLength)
	}
	if request.Status != StatusPending {
		t.Errorf("status = %q, want pending", request.Status)
	}
	if want := testStart.Add(TTL); !request.ExpiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", request.ExpiresAt, want)
	}
	if request.PendingSignature == "" {
		t.Error("pending signature is empty")
	}
	if request.ApprovedSignature != "" {
		t.Error("approved signature set at creation")
	}
}

func TestConfirmThenConsumeOnce(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	request := createTestRequest(t, ledger)
	ctx := context.Background()

	// Nothing to consume before confirmation.
	if grant, err := ledger.CheckAndConsume(ctx, "db", "dropTable"); err != nil || grant != nil {
		t.Fatalf("CheckAndConsume before confirmation = %v, %v; want nil, nil", grant, err)
	}

	approved, err := ledger.ValidateConfirmation(ctx, "approve db", request.Code)
	if err != nil {
		t.Fatalf("ValidateConfirmation: %v", err)
	}
	if approved.Server != "db" || approved.Tool != "dropTable" {
		t.Errorf("approved = %+v, want db.dropTable", approved)
	}

	grant, err := ledger.CheckAndConsume(ctx, "db", "dropTable")
	if err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	if grant == nil {
		t.Fatal("CheckAndConsume after confirmation returned no grant")
	}
	if grant.Code != request.Code {
		t.Errorf("grant code = %q, want %q", grant.Code, request.Code)
	}

	// One-time use: a second consumption finds nothing.
	grant, err = ledger.CheckAndConsume(ctx, "db", "dropTable")
	if err != nil {
		t.Fatalf("second CheckAndConsume: %v", err)
	}
	if grant != nil {
		t.Error("approval consumed twice")
	}
}

func TestConsumeRequiresExactServerAndTool(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	request := createTestRequest(t, ledger)
	ctx := context.Background()

	if _, err := ledger.ValidateConfirmation(ctx, "APPROVE DB", request.Code); err != nil {
		t.Fatalf("ValidateConfirmation: %v", err)
	}

	for _, pair := range [][2]string{
		{"db", "createTable"},
		{"github", "dropTable"},
	} {
		grant, err := ledger.CheckAndConsume(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("CheckAndConsume(%s, %s): %v", pair[0], pair[1], err)
		}
		if grant != nil {
			t.Errorf("approval for db.dropTable consumed by %s.%s", pair[0], pair[1])
		}
	}
}

func TestConfirmationFailureReasons(t *testing.T) {
	ledger, fake, _ := newTestLedger(t)
	request := createTestRequest(t, ledger)
	ctx := context.Background()

	if _, err := ledger.ValidateConfirmation(ctx, "APPROVE DB", "ZZZZZZ"); !errors.Is(err, ErrNoSuchCode) {
		t.Errorf("unknown code: err = %v, want ErrNoSuchCode", err)
	}
	if _, err := ledger.ValidateConfirmation(ctx, "APPROVE GITHUB", request.Code); !errors.Is(err, ErrWrongPhrase) {
		t.Errorf("wrong phrase: err = %v, want ErrWrongPhrase", err)
	}

	if _, err := ledger.ValidateConfirmation(ctx, "APPROVE DB", request.Code); err != nil {
		t.Fatalf("ValidateConfirmation: %v", err)
	}
	if _, err := ledger.ValidateConfirmation(ctx, "APPROVE DB", request.Code); !errors.Is(err, ErrAlreadyUsed) {
		t.Errorf("re-confirmation: err = %v, want ErrAlreadyUsed", err)
	}

	// A fresh request that expires before confirmation.
	second := createTestRequest(t, ledger)
	fake.Advance(TTL + time.Second)
	if _, err := ledger.ValidateConfirmation(ctx, "APPROVE DB", second.Code); !errors.Is(err, ErrExpired) {
		t.Errorf("expired: err = %v, want ErrExpired", err)
	}
}

func TestExpiredApprovalIsNotConsumable(t *testing.T) {
	ledger, fake, _ := newTestLedger(t)
	request := createTestRequest(t, ledger)
	ctx := context.Background()

	if _, err := ledger.ValidateConfirmation(ctx, "APPROVE DB", request.Code); err != nil {
		t.Fatalf("ValidateConfirmation: %v", err)
	}

	fake.Advance(TTL + time.Minute)
	grant, err := ledger.CheckAndConsume(ctx, "db", "dropTable")
	if err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	if grant != nil {
		t.Error("expired approval was consumed")
	}
}

func TestTamperedSignaturesAreRejectedAndRemoved(t *testing.T) {
	for _, field := range []string{"pending", "approved"} {
		t.Run(field, func(t *testing.T) {
			ledger, _, store := newTestLedger(t)
			ctx := context.Background()

			victim := createTestRequest(t, ledger)
			if _, err := ledger.ValidateConfirmation(ctx, "APPROVE DB", victim.Code); err != nil {
				t.Fatalf("ValidateConfirmation: %v", err)
			}

			// A sibling entry for another tool must survive the purge.
			sibling, err := ledger.CreateRequest(ctx, "db", "query", `{}`, "APPROVE DB")
			if err != nil {
				t.Fatalf("CreateRequest: %v", err)
			}

			stored, found, err := store.Get(ctx, victim.Code)
			if err != nil || !found {
				t.Fatalf("Get: %v, found=%v", err, found)
			}
			if field == "pending" {
				stored.PendingSignature = "AAAA" + stored.PendingSignature[4:]
			} else {
				stored.ApprovedSignature = "AAAA" + stored.ApprovedSignature[4:]
			}
			if err := store.Put(ctx, stored); err != nil {
				t.Fatalf("Put: %v", err)
			}

			grant, err := ledger.CheckAndConsume(ctx, "db", "dropTable")
			if err != nil {
				t.Fatalf("CheckAndConsume: %v", err)
			}
			if grant != nil {
				t.Fatal("tampered entry produced a grant")
			}

			if _, found, _ := store.Get(ctx, victim.Code); found {
				t.Error("tampered entry still present after scan")
			}
			if _, found, _ := store.Get(ctx, sibling.Code); !found {
				t.Error("sibling entry removed by forgery purge")
			}
		})
	}
}

func TestEditedFieldsInvalidateSignature(t *testing.T) {
	// Rewriting the target of an approved entry (keeping the stored
	// signatures) must not transfer the approval.
	ledger, _, store := newTestLedger(t)
	ctx := context.Background()

	request := createTestRequest(t, ledger)
	if _, err := ledger.ValidateConfirmation(ctx, "APPROVE DB", request.Code); err != nil {
		t.Fatalf("ValidateConfirmation: %v", err)
	}

	stored, _, err := store.Get(ctx, request.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	stored.Tool = "exportAllData"
	if err := store.Put(ctx, stored); err != nil {
		t.Fatalf("Put: %v", err)
	}

	grant, err := ledger.CheckAndConsume(ctx, "db", "exportAllData")
	if err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	if grant != nil {
		t.Error("retargeted entry produced a grant")
	}
}

func TestCreateRequestSweepsExpiredEntries(t *testing.T) {
	ledger, fake, store := newTestLedger(t)
	ctx := context.Background()

	stale := createTestRequest(t, ledger)
	fake.Advance(TTL + time.Second)

	fresh := createTestRequest(t, ledger)

	if _, found, _ := store.Get(ctx, stale.Code); found {
		t.Error("expired entry survived the creation-time sweep")
	}
	if _, found, _ := store.Get(ctx, fresh.Code); !found {
		t.Error("fresh entry missing after sweep")
	}
}

func TestPendingEntryCannotBeConsumed(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	createTestRequest(t, ledger)

	grant, err := ledger.CheckAndConsume(context.Background(), "db", "dropTable")
	if err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	if grant != nil {
		t.Error("pending entry produced a grant without confirmation")
	}
}

func TestValidateConfirmationRejectsForgedPending(t *testing.T) {
	ledger, _, store := newTestLedger(t)
	ctx := context.Background()

	request := createTestRequest(t, ledger)
	stored, _, err := store.Get(ctx, request.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	stored.Server = "prod-db"
	if err := store.Put(ctx, stored); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := ledger.ValidateConfirmation(ctx, "APPROVE DB", request.Code); !errors.Is(err, ErrForgedSignature) {
		t.Errorf("forged pending entry: err = %v, want ErrForgedSignature", err)
	}
	if _, found, _ := store.Get(ctx, request.Code); found {
		t.Error("forged entry still present after rejection")
	}
}
