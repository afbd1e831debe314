// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// TTL is the fixed lifetime of an approval request. There is no way
// to extend or cancel a code; it is consumed or it expires.
const TTL = 5 * time.Minute

// CodeLength is the length of an approval code.
const CodeLength = 6

// codeAlphabet is the 31-symbol approval code alphabet: uppercase
// letters and digits minus the visually confusable O/I/L and 0/1.
// With 31^6 possible codes, collisions among the handful of codes
// live at any moment are negligible and are not deduplicated.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Status is the lifecycle state of a request. The only transition is
// Pending to Approved; an unapproved request simply expires.
type Status string

const (
	// StatusPending means the request awaits human confirmation.
	StatusPending Status = "pending"

	// StatusApproved means a human confirmed the request and it may
	// be consumed once.
	StatusApproved Status = "approved"
)

// Request is the unit of authorization: one code authorizing one
// future invocation of one (server, tool) pair.
type Request struct {
	// Code is the 6-character one-time approval code.
	Code string `json:"code"`

	// Server and Tool identify the action being authorized.
	Server string `json:"server"`
	Tool   string `json:"tool"`

	// Args is the argument snapshot captured at request time:
	// compacted JSON when the payload parsed, or the raw string when
	// it did not. Malformed arguments degrade the snapshot, never
	// the protection.
	Args string `json:"args"`

	// ArgsDigest is the hex BLAKE3 digest of Args (domain-keyed),
	// used to correlate audit log lines without reproducing argument
	// contents.
	ArgsDigest string `json:"args_digest"`

	// Phrase is the approval phrase of the server's policy at
	// request time.
	Phrase string `json:"phrase"`

	// Status is pending or approved.
	Status Status `json:"status"`

	// CreatedAt and ExpiresAt bound the request's lifetime
	// (ExpiresAt = CreatedAt + TTL, fixed at creation, second
	// precision so every store round-trips the signed value exactly).
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// ApprovedAt is stamped by the confirmation processor.
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	// PendingSignature is the HMAC computed at creation.
	// ApprovedSignature is computed only at confirmation. Both are
	// verified before an entry is trusted.
	PendingSignature  string `json:"pending_signature"`
	ApprovedSignature string `json:"approved_signature,omitempty"`
}

// Expired reports whether the request is expired at the given time.
func (r *Request) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// generateCode draws a CodeLength-character code from codeAlphabet
// using crypto/rand with rejection sampling for a uniform
// distribution.
func generateCode() (string, error) {
	// Largest multiple of len(codeAlphabet) below 256; bytes at or
	// above it are rejected to avoid modulo bias.
	limit := byte(256 / len(codeAlphabet) * len(codeAlphabet))

	code := make([]byte, 0, CodeLength)
	buffer := make([]byte, 1)
	for len(code) < CodeLength {
		if _, err := rand.Read(buffer); err != nil {
			return "", fmt.Errorf("generating approval code: %w", err)
		}
		if buffer[0] >= limit {
			continue
		}
		code = append(code, codeAlphabet[int(buffer[0])%len(codeAlphabet)])
	}
	return string(code), nil
}

// argsDigestKey is the BLAKE3 keyed-hash domain key for argument
// snapshots: the ASCII domain name zero-padded to 32 bytes. Changing
// it changes every digest.
var argsDigestKey = [32]byte{
	't', 'o', 'o', 'l', 'g', 'a', 't', 'e', '.', 'a', 'r', 'g', 's', 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// snapshotArgs canonicalizes a raw argument payload for storage.
// Valid JSON is compacted with sorted keys (encoding/json sorts map
// keys) so equal payloads snapshot identically; anything else is kept
// as the raw string; a malformed payload degrades the snapshot, not
// the protection. The digest covers whatever was stored.
func snapshotArgs(raw string) (args, digest string) {
	args = raw
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		if canonical, err := json.Marshal(decoded); err == nil {
			args = string(canonical)
		}
	}

	// NewKeyed requires exactly 32 bytes, which argsDigestKey
	// guarantees.
	hasher, err := blake3.NewKeyed(argsDigestKey[:])
	if err != nil {
		panic("ledger: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(args))
	return args, hex.EncodeToString(hasher.Sum(nil))
}
