// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package protectkey

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/toolgate-foundation/toolgate/lib/secret"
)

// Escrow encrypts the raw protection key to one or more operator age
// recipients (age1... public keys) and returns the ciphertext as a
// base64 string suitable for cold storage. At least one recipient is
// required.
//
// Escrow does not weaken the single-secret model: the escrow
// ciphertext is useless without an operator's age identity, which
// never touches the machines running the gate.
func (k *Key) Escrow(recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("at least one escrow recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("parsing escrow recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(k.rawBytes()); err != nil {
		return "", fmt.Errorf("encrypting protection key: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing escrow encryption: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// RecoverEscrow decrypts an escrow ciphertext with an operator age
// identity (AGE-SECRET-KEY-1... in a secret buffer) and returns the
// recovered protection key. The identity buffer is borrowed, not
// closed.
func RecoverEscrow(ciphertext string, identityKey *secret.Buffer) (*Key, error) {
	identity, err := age.ParseX25519Identity(identityKey.String())
	if err != nil {
		return nil, fmt.Errorf("parsing escrow identity: %w", err)
	}

	rawCiphertext, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding escrow ciphertext: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(rawCiphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting escrow: %w", err)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading recovered key: %w", err)
	}
	if len(raw) != KeySize {
		secret.Zero(raw)
		return nil, fmt.Errorf("recovered key is %d bytes, want %d", len(raw), KeySize)
	}

	buffer, err := secret.NewFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("protecting recovered key: %w", err)
	}
	return &Key{raw: buffer}, nil
}

// GenerateEscrowIdentity creates a new operator age identity for
// escrow. The private key is returned in a secret buffer; the public
// key (the escrow recipient) is a plain string, safe to publish.
func GenerateEscrowIdentity() (identityKey *secret.Buffer, recipient string, err error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, "", fmt.Errorf("generating escrow identity: %w", err)
	}

	// Move the private key into mmap-backed memory immediately. The
	// intermediate string is on the heap and will be GC'd;
	// unavoidable with the age API; the buffer is the durable copy.
	buffer, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, "", fmt.Errorf("protecting escrow identity: %w", err)
	}
	return buffer, identity.Recipient().String(), nil
}
