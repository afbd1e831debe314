// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package gate is the choke-point enforcer invoked before every tool
// call. It combines the policy resolver and the approval ledger into
// a single decision: allow the call, or block it and issue a
// phrase+code challenge.
//
// The state machine, evaluated once per invocation:
//
//   - non-namespaced tool: NotApplicable, allow
//   - missing or corrupt config, missing key: block (fail-closed)
//   - unknown server: block (protected by default)
//   - unprotected (server allow-listed, or tool outside the server's
//     selectors): allow
//   - protected with a verified approval: consume it, allow
//   - protected without one: create a pending request, block with a
//     challenge
//
// Every error inside the enforcer resolves to block. There is no
// silent default-allow path: a malformed argument payload degrades
// the stored snapshot, a failed ledger write still surfaces the
// challenge, and a forged ledger entry is deleted rather than
// honored.
package gate
