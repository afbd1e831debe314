// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/toolgate-foundation/toolgate/lib/clock"
	"github.com/toolgate-foundation/toolgate/lib/protectkey"
	"github.com/toolgate-foundation/toolgate/lib/secret"
)

// Confirmation failure reasons, in the priority order they are
// checked. All of them resolve to a blocked action upstream.
var (
	// ErrNoSuchCode means no request with the typed code exists.
	ErrNoSuchCode = errors.New("no approval request with that code")

	// ErrWrongPhrase means the code exists but belongs to a
	// different server's phrase.
	ErrWrongPhrase = errors.New("approval phrase does not match the request")

	// ErrAlreadyUsed means the request was already confirmed and not
	// yet consumed; re-confirmation is an error, not a re-sign.
	ErrAlreadyUsed = errors.New("approval request already confirmed")

	// ErrExpired means the request's lifetime has passed.
	ErrExpired = errors.New("approval request expired")

	// ErrForgedSignature means a stored entry's signature did not
	// verify against its own fields. The entry is deleted on sight.
	ErrForgedSignature = errors.New("approval request signature invalid")
)

// Approved describes a successfully confirmed request.
type Approved struct {
	Code      string
	Server    string
	Tool      string
	ExpiresAt time.Time
}

// Grant is a consumed approval: proof that this exact (server, tool)
// invocation was authorized by a human and that the authorization has
// now been spent.
type Grant struct {
	Code       string
	Server     string
	Tool       string
	ApprovedAt time.Time
	ArgsDigest string
}

// Ledger orchestrates the approval request lifecycle over an injected
// Store, Clock, and signing key. It holds no state of its own, so the
// gate enforcer and the confirmation processor can share one ledger
// implementation across their separate process invocations.
type Ledger struct {
	store      Store
	signingKey *secret.Buffer
	clock      clock.Clock
	logger     *slog.Logger
}

// New creates a Ledger. The signing subkey is derived from the
// protection key immediately so a derivation failure surfaces here,
// not in the middle of a check.
func New(store Store, key *protectkey.Key, clk clock.Clock, logger *slog.Logger) (*Ledger, error) {
	signingKey, err := key.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("deriving ledger signing key: %w", err)
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ledger{
		store:      store,
		signingKey: signingKey,
		clock:      clk,
		logger:     logger,
	}, nil
}

// CreateRequest generates a new pending request for (server, tool),
// signs it, and persists it. Expired entries are swept from the store
// as a side effect, which keeps the ledger bounded without a separate
// GC process.
//
// On a storage write failure the signed request is still returned
// alongside the error: the caller must surface the challenge to the
// human even though the code may be lost; a later consumption
// attempt then falls through to NoSuchCode, which is equally
// fail-closed.
func (l *Ledger) CreateRequest(ctx context.Context, server, tool, rawArgs, phrase string) (*Request, error) {
	now := l.clock.Now().UTC().Truncate(time.Second)

	if swept, err := l.store.DeleteExpired(ctx, now); err != nil {
		l.logger.Warn("expiry sweep failed", "error", err)
	} else if swept > 0 {
		l.logger.Info("swept expired approval requests", "count", swept)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	args, digest := snapshotArgs(rawArgs)
	request := Request{
		Code:       code,
		Server:     server,
		Tool:       tool,
		Args:       args,
		ArgsDigest: digest,
		Phrase:     phrase,
		Status:     StatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(TTL),
	}

	request.PendingSignature, err = computeSignature(l.signingKey, purposePending, code, server, tool, request.ExpiresAt)
	if err != nil {
		return nil, err
	}

	if err := l.store.Put(ctx, request); err != nil {
		return &request, fmt.Errorf("persisting approval request: %w", err)
	}

	l.logger.Info("approval request created",
		"code", code,
		"server", server,
		"tool", tool,
		"args_digest", digest,
		"expires_at", request.ExpiresAt,
	)
	return &request, nil
}

// ValidateConfirmation promotes a pending request to approved when
// the typed phrase and code check out. Failure reasons are evaluated
// in priority order: NoSuchCode, WrongPhrase, AlreadyUsed, Expired.
// A request whose pending signature does not verify is deleted and
// reported as forged; file presence alone is not proof of anything.
func (l *Ledger) ValidateConfirmation(ctx context.Context, phrase, code string) (*Approved, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	request, found, err := l.store.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("reading approval ledger: %w", err)
	}
	if !found {
		return nil, ErrNoSuchCode
	}
	if normalizePhrase(request.Phrase) != normalizePhrase(phrase) {
		return nil, ErrWrongPhrase
	}
	if request.Status == StatusApproved {
		return nil, ErrAlreadyUsed
	}

	now := l.clock.Now().UTC()
	if request.Expired(now) {
		return nil, ErrExpired
	}

	if !verifySignature(l.signingKey, purposePending, &request, request.PendingSignature) {
		l.deleteForged(ctx, &request, "pending")
		return nil, ErrForgedSignature
	}

	approvedAt := now.Truncate(time.Second)
	request.Status = StatusApproved
	request.ApprovedAt = &approvedAt
	request.ApprovedSignature, err = computeSignature(l.signingKey, purposeApproved, request.Code, request.Server, request.Tool, request.ExpiresAt)
	if err != nil {
		return nil, err
	}

	if err := l.store.Put(ctx, request); err != nil {
		return nil, fmt.Errorf("persisting approval: %w", err)
	}

	l.logger.Info("approval request confirmed",
		"code", request.Code,
		"server", request.Server,
		"tool", request.Tool,
	)
	return &Approved{
		Code:      request.Code,
		Server:    request.Server,
		Tool:      request.Tool,
		ExpiresAt: request.ExpiresAt,
	}, nil
}

// CheckAndConsume looks for a verified, approved, unexpired request
// for exactly (server, tool). Both signatures are recomputed from the
// entry's own fields before it is trusted; an entry failing either
// check was edited outside the sanctioned code paths and is deleted
// on the spot, without stopping the scan. A verified match is deleted
// (one-time use) and returned as a Grant.
//
// Returns (nil, nil) when no valid approval exists; the caller
// blocks and issues a challenge.
func (l *Ledger) CheckAndConsume(ctx context.Context, server, tool string) (*Grant, error) {
	requests, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading approval ledger: %w", err)
	}

	now := l.clock.Now().UTC()
	for i := range requests {
		request := &requests[i]
		if request.Server != server || request.Tool != tool {
			continue
		}
		if request.Status != StatusApproved || request.Expired(now) {
			continue
		}

		if !verifySignature(l.signingKey, purposePending, request, request.PendingSignature) {
			l.deleteForged(ctx, request, "pending")
			continue
		}
		if !verifySignature(l.signingKey, purposeApproved, request, request.ApprovedSignature) {
			l.deleteForged(ctx, request, "approved")
			continue
		}

		// One-time use: the entry must be gone before the grant is
		// handed out. A failed delete means the approval could be
		// replayed, so it blocks instead.
		if err := l.store.Delete(ctx, request.Code); err != nil {
			return nil, fmt.Errorf("consuming approval %s: %w", request.Code, err)
		}

		l.logger.Info("approval consumed",
			"code", request.Code,
			"server", server,
			"tool", tool,
		)
		grant := &Grant{
			Code:       request.Code,
			Server:     request.Server,
			Tool:       request.Tool,
			ArgsDigest: request.ArgsDigest,
		}
		if request.ApprovedAt != nil {
			grant.ApprovedAt = *request.ApprovedAt
		}
		return grant, nil
	}
	return nil, nil
}

// Requests returns all persisted requests, for inspection tooling.
func (l *Ledger) Requests(ctx context.Context) ([]Request, error) {
	return l.store.List(ctx)
}

// Sweep removes expired requests and returns the number removed.
func (l *Ledger) Sweep(ctx context.Context) (int, error) {
	return l.store.DeleteExpired(ctx, l.clock.Now().UTC())
}

// deleteForged removes an entry whose signature failed verification.
// Deletion failures are logged, not returned; the entry was already
// rejected and the caller is continuing fail-closed either way.
func (l *Ledger) deleteForged(ctx context.Context, request *Request, which string) {
	l.logger.Warn("deleting approval request with invalid signature",
		"code", request.Code,
		"server", request.Server,
		"tool", request.Tool,
		"signature", which,
	)
	if err := l.store.Delete(ctx, request.Code); err != nil {
		l.logger.Error("failed to delete forged approval request",
			"code", request.Code,
			"error", err,
		)
	}
}

// normalizePhrase uppercases and collapses whitespace for phrase
// comparison.
func normalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ToUpper(phrase)), " ")
}
