// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package confirm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/toolgate-foundation/toolgate/lib/ledger"
	"github.com/toolgate-foundation/toolgate/lib/policy"
)

// Outcome is the processor's answer for one line of input.
type Outcome struct {
	// PassThrough is set when the line should reach the agent
	// unchanged: prose, or an approval attempt whose phrase no
	// policy claims.
	PassThrough bool

	// Notice is a warning to show the human alongside a pass-through,
	// e.g. for an unrecognized phrase.
	Notice string

	// Approved is the confirmed request on success.
	Approved *ledger.Approved

	// Err is the confirmation failure on a matched phrase. The line
	// does not pass through: a failed approval attempt was meant for
	// the gate, not the agent.
	Err error
}

// Processor validates approval attempts against the policy document
// and the approval ledger.
type Processor struct {
	policies *policy.Document
	ledger   *ledger.Ledger
	logger   *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(policies *policy.Document, approvals *ledger.Ledger, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{policies: policies, ledger: approvals, logger: logger}
}

// Process classifies and, when applicable, confirms one line of
// human input.
func (p *Processor) Process(ctx context.Context, line string) Outcome {
	switch input := Parse(line).(type) {
	case Prose:
		return Outcome{PassThrough: true}

	case ApprovalAttempt:
		serverID, _, found := p.policies.ByPhrase(input.Phrase)
		if !found {
			p.logger.Warn("approval attempt with unrecognized phrase", "phrase", input.Phrase)
			return Outcome{
				PassThrough: true,
				Notice:      fmt.Sprintf("no server uses the approval phrase %q; forwarding as ordinary input", input.Phrase),
			}
		}

		approved, err := p.ledger.ValidateConfirmation(ctx, input.Phrase, input.Code)
		if err != nil {
			p.logger.Warn("confirmation rejected",
				"server", serverID,
				"code", input.Code,
				"error", err,
			)
			return Outcome{Err: err}
		}

		p.logger.Info("confirmation accepted",
			"server", approved.Server,
			"tool", approved.Tool,
			"code", approved.Code,
		)
		return Outcome{Approved: approved}

	default:
		return Outcome{PassThrough: true}
	}
}
