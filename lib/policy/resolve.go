// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"github.com/bmatcuk/doublestar/v4"
)

// Protection classifies the result of resolving a (server, tool) pair.
type Protection int

const (
	// UnknownServer means the server appears in neither the policy
	// map nor the unprotected allow-list. Fail-closed: block.
	UnknownServer Protection = iota

	// Unprotected means the call may proceed without approval.
	Unprotected

	// Protected means the call requires a valid approval.
	Protected
)

// String returns a human-readable classification.
func (p Protection) String() string {
	switch p {
	case UnknownServer:
		return "unknown server"
	case Unprotected:
		return "unprotected"
	case Protected:
		return "protected"
	default:
		return "invalid"
	}
}

// Resolution is the outcome of resolving a (server, tool) pair
// against the policy document.
type Resolution struct {
	// Protection classifies the call.
	Protection Protection

	// ServerID is the server the call addressed.
	ServerID string

	// Policy is the matched server policy. Set only when the server
	// is listed in the document (Protected, or Unprotected because
	// the tool matched no selector).
	Policy *ServerPolicy
}

// Resolve maps a (server, tool) pair to its protection requirement.
//
// An unlisted server is protected-by-default unless it appears in the
// explicit unprotected allow-list; new servers must not silently
// bypass the gate. For a listed server, the tool selectors decide:
// "*" protects every tool; otherwise literal names and doublestar
// globs are matched, and a tool matching no selector is unprotected
// for that server only. An empty selector list protects all tools.
func (d *Document) Resolve(server, tool string) Resolution {
	serverPolicy, listed := d.Servers[server]
	if !listed {
		for _, allowed := range d.AllowedUnprotectedServers {
			if allowed == server {
				return Resolution{Protection: Unprotected, ServerID: server}
			}
		}
		return Resolution{Protection: UnknownServer, ServerID: server}
	}

	if toolMatches(serverPolicy.Tools, tool) {
		return Resolution{Protection: Protected, ServerID: server, Policy: &serverPolicy}
	}
	return Resolution{Protection: Unprotected, ServerID: server, Policy: &serverPolicy}
}

// ByPhrase finds the server whose policy uses the given approval
// phrase. Matching is case-insensitive and whitespace-insensitive.
func (d *Document) ByPhrase(phrase string) (serverID string, serverPolicy *ServerPolicy, found bool) {
	canonical := canonicalPhrase(phrase)
	for id, server := range d.Servers {
		if canonicalPhrase(server.Phrase) == canonical {
			policyCopy := server
			return id, &policyCopy, true
		}
	}
	return "", nil, false
}

// toolMatches checks a tool name against the selector list. An empty
// list protects everything (fail-closed), as does a "*" entry.
// Invalid glob patterns are skipped; a broken pattern must not widen
// or narrow protection silently, and validation cannot reject every
// malformed glob doublestar might see.
func toolMatches(selectors []string, tool string) bool {
	if len(selectors) == 0 {
		return true
	}
	for _, selector := range selectors {
		if selector == "*" {
			return true
		}
		if matched, err := doublestar.Match(selector, tool); err == nil && matched {
			return true
		}
	}
	return false
}
