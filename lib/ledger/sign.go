// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/toolgate-foundation/toolgate/lib/codec"
	"github.com/toolgate-foundation/toolgate/lib/secret"
)

// Signature purposes. The purpose is part of the signed payload, so a
// pending signature can never be replayed as an approved one.
const (
	purposePending  = "pending"
	purposeApproved = "approved"
)

// computeSignature HMACs the identifying fields of a request under
// the signing subkey. The payload is deterministic CBOR of
// [purpose, code, server, tool, expiresAtUnix]: canonical bytes with
// no delimiter ambiguity, independent of how any store serializes the
// request.
func computeSignature(signingKey *secret.Buffer, purpose, code, server, tool string, expiresAt time.Time) (string, error) {
	payload, err := codec.Marshal([]any{purpose, code, server, tool, expiresAt.Unix()})
	if err != nil {
		return "", fmt.Errorf("encoding signature payload: %w", err)
	}

	mac := hmac.New(sha256.New, signingKey.Bytes())
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// verifySignature recomputes the signature from the request's own
// fields and compares it to the stored value in constant time. Any
// failure, including an undecodable stored signature, verifies
// false.
func verifySignature(signingKey *secret.Buffer, purpose string, request *Request, stored string) bool {
	expected, err := computeSignature(signingKey, purpose, request.Code, request.Server, request.Tool, request.ExpiresAt)
	if err != nil {
		return false
	}

	expectedRaw, err := base64.StdEncoding.DecodeString(expected)
	if err != nil {
		return false
	}
	storedRaw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return false
	}
	return hmac.Equal(expectedRaw, storedRaw)
}
