// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package protectkey owns the protection key: a single long-lived
// 32-byte symmetric secret that is the root of trust for every
// approval signature and every encrypted credential.
//
// The key is persisted as one base64 line in a file readable only by
// the trusted owner. [Load] never generates a key; absence is a
// distinct, fail-closed condition ([ErrKeyMissing]) because
// provisioning must be an explicit administrative action ([Generate]
// via the toolgate CLI), never a side effect of a security check.
//
// Purpose-specific subkeys are derived from the root key with
// HKDF-SHA256 and domain-separated info strings: [Key.SigningKey] for
// ledger HMACs, [Key.CipherKey] for credential encryption. Both the
// root key and the derived keys live in [secret.Buffer] memory (mmap,
// mlock, zeroed on close).
//
// [Key.Escrow] encrypts the raw key to operator age recipients so a
// lost key file is recoverable from cold storage; [RecoverEscrow] is
// the inverse. Losing the key with no escrow invalidates every
// outstanding approval and disables credential decryption; that is
// the designed blast radius of the single-secret model.
package protectkey
