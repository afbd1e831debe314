// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/toolgate-foundation/toolgate/lib/ledger"
	"github.com/toolgate-foundation/toolgate/lib/policy"
	"github.com/toolgate-foundation/toolgate/lib/protectkey"
)

// Decision is the enforcer's verdict for one tool call.
type Decision int

const (
	// Block stops the call. The zero value, so a half-built Outcome
	// never accidentally allows.
	Block Decision = iota

	// Allow lets the call proceed.
	Allow
)

// String returns the verdict as it appears in logs.
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "block"
}

// Reason explains an Outcome.
type Reason int

const (
	// ReasonNotApplicable: the tool name is not namespaced, so the
	// gate has no opinion.
	ReasonNotApplicable Reason = iota

	// ReasonUnprotected: policy classifies the call as not requiring
	// approval.
	ReasonUnprotected

	// ReasonApproved: a valid approval existed and has been consumed.
	ReasonApproved

	// ReasonApprovalRequired: the call is protected and no approval
	// exists. A challenge accompanies the block.
	ReasonApprovalRequired

	// ReasonUnknownServer: the server appears nowhere in the policy
	// document. Protected by default.
	ReasonUnknownServer

	// ReasonConfigMissing: the policy document does not exist.
	ReasonConfigMissing

	// ReasonConfigCorrupt: the policy document or the ledger store
	// exists but cannot be trusted.
	ReasonConfigCorrupt

	// ReasonKeyMissing: the protection key is absent or unreadable.
	// Approvals cannot be verified, so nothing protected may run.
	ReasonKeyMissing

	// ReasonStorageFailure: the ledger could not be read or written.
	ReasonStorageFailure
)

// String returns the reason in the form used for logs and stderr.
func (r Reason) String() string {
	switch r {
	case ReasonNotApplicable:
		return "not applicable"
	case ReasonUnprotected:
		return "unprotected"
	case ReasonApproved:
		return "approved"
	case ReasonApprovalRequired:
		return "approval required"
	case ReasonUnknownServer:
		return "unknown server"
	case ReasonConfigMissing:
		return "policy missing"
	case ReasonConfigCorrupt:
		return "configuration corrupt"
	case ReasonKeyMissing:
		return "protection key missing"
	case ReasonStorageFailure:
		return "ledger storage failure"
	default:
		return "invalid"
	}
}

// Challenge is the approval prompt shown to the human when a
// protected call is blocked.
type Challenge struct {
	// Phrase is the server's approval phrase, e.g. "APPROVE DB".
	Phrase string

	// Code is the one-time code the human appends to the phrase.
	Code string

	// ExpiresAt is when the code stops working.
	ExpiresAt time.Time

	// Persisted is false when the ledger write failed. The challenge
	// is still shown so the human understands why the call stopped,
	// but the code will not be confirmable.
	Persisted bool
}

// Message renders the challenge text for the agent transcript.
func (c *Challenge) Message(server, tool string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Protected action blocked pending human approval.\n\n")
	fmt.Fprintf(&b, "  server: %s\n", server)
	fmt.Fprintf(&b, "  tool:   %s\n\n", tool)
	fmt.Fprintf(&b, "To approve, the user must type:\n\n")
	fmt.Fprintf(&b, "    %s %s\n\n", c.Phrase, c.Code)
	fmt.Fprintf(&b, "The code expires in %d minutes and authorizes exactly one call.\n", int(ledger.TTL.Minutes()))
	if !c.Persisted {
		b.WriteString("Warning: the approval ledger could not be written; this code may not be confirmable.\n")
	}
	return b.String()
}

// Outcome is the enforcer's full answer for one tool call.
type Outcome struct {
	Decision Decision
	Reason   Reason

	// Grant is set when Reason is ReasonApproved.
	Grant *ledger.Grant

	// Challenge is set when Reason is ReasonApprovalRequired.
	Challenge *Challenge

	// Server and Tool are the parsed call target, when namespaced.
	Server string
	Tool   string

	// Detail carries the underlying error text for blocked outcomes
	// caused by infrastructure failures.
	Detail string
}

// Enforcer decides whether a tool call may proceed. It is built from
// an already-loaded policy document and ledger; use ClassifyError to
// map load failures to block reasons before an Enforcer exists.
type Enforcer struct {
	policies *policy.Document
	ledger   *ledger.Ledger
	logger   *slog.Logger
}

// NewEnforcer creates an Enforcer over loaded collaborators.
func NewEnforcer(policies *policy.Document, approvals *ledger.Ledger, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Enforcer{policies: policies, ledger: approvals, logger: logger}
}

// Check runs the gate for one tool call. rawArgs is the tool's input
// payload as received; it is snapshotted into the approval request
// even when malformed, so a challenge is never skipped because of a
// bad payload.
func (e *Enforcer) Check(ctx context.Context, toolName, rawArgs string) Outcome {
	call, namespaced := ParseToolName(toolName)
	if !namespaced {
		return Outcome{Decision: Allow, Reason: ReasonNotApplicable}
	}

	outcome := e.check(ctx, call, rawArgs)
	e.logger.Info("gate decision",
		"server", outcome.Server,
		"tool", outcome.Tool,
		"decision", outcome.Decision.String(),
		"reason", outcome.Reason.String(),
	)
	return outcome
}

func (e *Enforcer) check(ctx context.Context, call ToolCall, rawArgs string) Outcome {
	outcome := Outcome{Server: call.Server, Tool: call.Tool}

	resolution := e.policies.Resolve(call.Server, call.Tool)
	switch resolution.Protection {
	case policy.UnknownServer:
		outcome.Decision = Block
		outcome.Reason = ReasonUnknownServer
		outcome.Detail = fmt.Sprintf("server %q is not covered by the policy document; add it to servers or allowed_unprotected_servers", call.Server)
		return outcome
	case policy.Unprotected:
		outcome.Decision = Allow
		outcome.Reason = ReasonUnprotected
		return outcome
	}

	grant, err := e.ledger.CheckAndConsume(ctx, call.Server, call.Tool)
	if err != nil {
		outcome.Decision = Block
		outcome.Reason = ClassifyError(err)
		outcome.Detail = err.Error()
		return outcome
	}
	if grant != nil {
		outcome.Decision = Allow
		outcome.Reason = ReasonApproved
		outcome.Grant = grant
		return outcome
	}

	request, err := e.ledger.CreateRequest(ctx, call.Server, call.Tool, rawArgs, resolution.Policy.Phrase)
	if err != nil && request == nil {
		outcome.Decision = Block
		outcome.Reason = ClassifyError(err)
		outcome.Detail = err.Error()
		return outcome
	}

	outcome.Decision = Block
	outcome.Reason = ReasonApprovalRequired
	outcome.Challenge = &Challenge{
		Phrase:    request.Phrase,
		Code:      request.Code,
		ExpiresAt: request.ExpiresAt,
		Persisted: err == nil,
	}
	if err != nil {
		outcome.Detail = err.Error()
	}
	return outcome
}

// ClassifyError maps infrastructure errors, including the ones a
// caller hits while loading the policy document and protection key,
// to block reasons.
func ClassifyError(err error) Reason {
	switch {
	case errors.Is(err, policy.ErrPolicyMissing):
		return ReasonConfigMissing
	case errors.Is(err, policy.ErrPolicyCorrupt), errors.Is(err, ledger.ErrStoreCorrupt):
		return ReasonConfigCorrupt
	case errors.Is(err, protectkey.ErrKeyMissing), errors.Is(err, protectkey.ErrKeyCorrupt):
		return ReasonKeyMissing
	default:
		return ReasonStorageFailure
	}
}
