// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package credcipher provides authenticated encryption for stored
// credential values using the protection key's cipher subkey.
//
// Encrypted values are tagged strings:
//
//	ENC[<iv>:<tag>:<ciphertext>]
//
// with each component standard base64 and a fresh random IV per
// encryption, so encrypting the same plaintext twice yields different
// strings. The cipher is AES-256-GCM; the authentication tag detects
// any single-bit tamper or wrong-key decryption.
//
// [Decrypt] never returns an error: a malformed wrapper, bad base64,
// or failed authentication all yield nil, which callers must treat as
// "no credential available". A gate check must not crash because a
// stored value was garbage.
package credcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/toolgate-foundation/toolgate/lib/protectkey"
	"github.com/toolgate-foundation/toolgate/lib/secret"
)

const (
	sentinelPrefix = "ENC["
	sentinelSuffix = "]"

	ivSize  = 12
	tagSize = 16
)

// Encrypt encrypts plaintext with the key's cipher subkey and wraps
// the result in the sentinel format. Plaintext must be non-empty.
func Encrypt(plaintext []byte, key *protectkey.Key) (string, error) {
	if len(plaintext) == 0 {
		return "", fmt.Errorf("refusing to encrypt empty credential")
	}

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating IV: %w", err)
	}

	// Seal appends ciphertext||tag; split them for the three-part
	// storage format.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	encode := base64.StdEncoding.EncodeToString
	return sentinelPrefix + encode(iv) + ":" + encode(tag) + ":" + encode(ciphertext) + sentinelSuffix, nil
}

// Decrypt unwraps and decrypts a sentinel-tagged value. Returns the
// plaintext in a secret buffer the caller must close, or nil if the
// wrapper is malformed, any component fails to decode, or the
// authentication tag does not verify (wrong key or tampering).
func Decrypt(value string, key *protectkey.Key) *secret.Buffer {
	iv, tag, ciphertext, ok := parse(value)
	if !ok {
		return nil
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil
	}

	sealed := append(ciphertext, tag...)
	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil
	}
	if len(plaintext) == 0 {
		return nil
	}

	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil
	}
	return buffer
}

// IsEncrypted reports whether value is structurally an encrypted
// credential (sentinel wrapper with three parts). It does not attempt
// decryption; it distinguishes encrypted-at-rest values from
// plaintext fallback values cheaply.
func IsEncrypted(value string) bool {
	_, _, _, ok := parse(value)
	return ok
}

// parse splits a sentinel-tagged value into its decoded components.
func parse(value string) (iv, tag, ciphertext []byte, ok bool) {
	if !strings.HasPrefix(value, sentinelPrefix) || !strings.HasSuffix(value, sentinelSuffix) {
		return nil, nil, nil, false
	}
	body := value[len(sentinelPrefix) : len(value)-len(sentinelSuffix)]

	parts := strings.Split(body, ":")
	if len(parts) != 3 {
		return nil, nil, nil, false
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return nil, nil, nil, false
	}
	tag, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return nil, nil, nil, false
	}
	ciphertext, err = base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, false
	}
	return iv, tag, ciphertext, true
}

func newAEAD(key *protectkey.Key) (cipher.AEAD, error) {
	cipherKey, err := key.CipherKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(cipherKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("initializing AES: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing GCM: %w", err)
	}
	return aead, nil
}
