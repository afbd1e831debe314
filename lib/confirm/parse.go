// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package confirm

import (
	"strings"

	"github.com/toolgate-foundation/toolgate/lib/ledger"
)

// Input is the result of parsing one line of human input. It is a
// closed set: Prose or ApprovalAttempt.
type Input interface {
	isInput()
}

// Prose is input that is not an approval attempt. It passes through
// to the agent untouched.
type Prose struct {
	// Line is the original input.
	Line string
}

func (Prose) isInput() {}

// ApprovalAttempt is input of the form "APPROVE <WORD>... <CODE>".
type ApprovalAttempt struct {
	// Phrase is the phrase portion, normalized to uppercase with
	// single spaces, including the leading APPROVE.
	Phrase string

	// Code is the trailing code, uppercased.
	Code string
}

func (ApprovalAttempt) isInput() {}

// Parse classifies one line of input. A line is an approval attempt
// only when all of the following hold: the first word is APPROVE
// (any case), a code-shaped final word follows, and at least one
// phrase word sits between them. Everything else is prose, including
// sentences that merely begin with the word "approve".
func Parse(line string) Input {
	words := strings.Fields(line)
	if len(words) < 3 {
		return Prose{Line: line}
	}
	if !strings.EqualFold(words[0], "APPROVE") {
		return Prose{Line: line}
	}

	code := strings.ToUpper(words[len(words)-1])
	if !codeShaped(code) {
		return Prose{Line: line}
	}

	phrase := strings.ToUpper(strings.Join(words[:len(words)-1], " "))
	return ApprovalAttempt{Phrase: phrase, Code: code}
}

// codeShaped reports whether word has the exact shape of a challenge
// code: CodeLength uppercase letters or digits. The check is shape,
// not membership in the code alphabet, so a typo like "C1K7Q0" still
// routes to the ledger and fails there with a precise reason.
func codeShaped(word string) bool {
	if len(word) != ledger.CodeLength {
		return false
	}
	for _, r := range word {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
