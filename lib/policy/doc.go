// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy loads the protection policy document and resolves
// (server, tool) pairs to protection requirements.
//
// The policy document is authored by hand, so it is parsed as JSONC
// (JSON extended with // comments, /* block comments */, and trailing
// commas):
//
//	{
//	  "version": 1,
//	  "servers": {
//	    "db": {
//	      "phrase": "APPROVE DB",
//	      "tools": ["*"],
//	      "credential_keys": ["db-password"],
//	    },
//	  },
//	  "allowed_unprotected_servers": ["docs"],
//	}
//
// Resolution is fail-closed: a server that appears in neither the
// servers map nor the allow-list is treated as protected-by-default
// and the call is blocked with an unrecognized-server reason. Within
// a listed server, tool selectors are "*" (all tools), literal names,
// or doublestar glob patterns; a tool that matches no selector is
// unprotected for that server only. An empty selector list protects
// every tool; absence of a selector must not weaken protection.
//
// Each phrase routes confirmation input back to its server, so
// phrases must be unique across all policies (case-insensitive) and
// must begin with the word APPROVE so the confirmation parser can
// recognize them in a line of human input.
package policy
