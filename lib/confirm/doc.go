// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package confirm turns a line of human input into an approval.
//
// The parser is deliberately structural rather than pattern-based: a
// line either tokenizes into an approval attempt (APPROVE, at least
// one phrase word, a trailing code) or it is ordinary prose that
// passes through untouched. There is no way for a near-miss to be
// half-matched.
//
// The processor routes a parsed attempt by its phrase to the owning
// server's policy, then delegates the actual promotion to the
// approval ledger. A phrase no policy claims is passed through with a
// warning, since the human may simply be talking about approvals.
package confirm
