// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger is the persistent store of approval requests and the
// owner of their lifecycle: code generation, HMAC signing, expiry,
// one-time consumption.
//
// A [Request] is created Pending by the gate enforcer when a
// protected call has no approval, promoted to Approved exactly once
// by the confirmation processor, and destroyed by the gate enforcer
// on successful consumption, or discarded by the opportunistic
// expiry sweep that runs whenever a request is created.
//
// Every request carries two HMAC-SHA256 signatures keyed by the
// protection key's signing subkey: the pending signature computed at
// creation, and the approved signature computed only at confirmation.
// Both are recomputed and verified before an entry is trusted at
// consumption time. Signing both records closes a forgery path: an
// attacker who can write the ledger storage directly but cannot
// derive the signing key can neither synthesize an approved entry
// from scratch nor promote a self-written pending entry. Signature
// payloads are deterministic CBOR (lib/codec), so verification never
// depends on incidental encoding details of the store.
//
// Storage is behind the [Store] interface with two implementations,
// each a transactional single-writer boundary:
//
//   - [FileStore]: one JSON document, written via temp file + fsync +
//     atomic rename.
//   - [SQLStore]: a SQLite database (lib/sqlitepool) with row-level
//     transactions.
//
// The [Ledger] itself is pure orchestration over an injected Store,
// Clock, and signing key, so both entry points (gate and
// confirmation) are unit-testable without a process boundary.
package ledger
