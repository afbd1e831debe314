// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package protectkey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/toolgate-foundation/toolgate/lib/secret"
)

// KeySize is the size of the protection key in bytes.
const KeySize = 32

// Domain-separation info strings for HKDF subkey derivation. Changing
// these invalidates every existing signature and ciphertext.
const (
	signingInfo = "toolgate.approval.signing.v1"
	cipherInfo  = "toolgate.credential.cipher.v1"
)

// ErrKeyMissing reports that no protection key has been provisioned.
// Callers performing a security check must treat this as a block
// condition, never as a cue to generate a key.
var ErrKeyMissing = errors.New("protection key not provisioned")

// ErrKeyCorrupt reports that a key file exists but does not contain a
// valid base64-encoded 32-byte key.
var ErrKeyCorrupt = errors.New("protection key file corrupt")

// Key is the loaded protection key plus lazily derived subkeys. All
// key material lives in mmap-backed secret buffers. Close releases
// everything.
type Key struct {
	mu      sync.Mutex
	raw     *secret.Buffer
	signing *secret.Buffer
	cipher  *secret.Buffer
}

// Generate creates a new random protection key. This is an explicit
// administrative action; nothing in the gate's check path calls it.
// The caller must Save the key and Close it when done.
func Generate() (*Key, error) {
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating protection key: %w", err)
	}
	buffer, err := secret.NewFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("protecting generated key: %w", err)
	}
	return &Key{raw: buffer}, nil
}

// Load reads the protection key from path. Returns ErrKeyMissing if
// the file does not exist, ErrKeyCorrupt if it exists but does not
// decode to exactly 32 bytes, and a permissions error if the file is
// readable by group or world.
func Load(path string) (*Key, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyMissing
		}
		return nil, fmt.Errorf("reading protection key: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		return nil, fmt.Errorf("protection key file %s has mode %04o, want owner-only access", path, mode)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading protection key: %w", err)
	}
	defer secret.Zero(data)

	encoded := strings.TrimSpace(string(data))
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyCorrupt, err)
	}
	if len(raw) != KeySize {
		secret.Zero(raw)
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrKeyCorrupt, len(raw), KeySize)
	}

	buffer, err := secret.NewFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("protecting loaded key: %w", err)
	}
	return &Key{raw: buffer}, nil
}

// Save writes the key to path as a single base64 line with owner-only
// permissions. The parent directory is created if needed (0700).
// Refuses to overwrite an existing key file; rotation is destructive
// and must be done deliberately by removing the old file first.
func (k *Key) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("protection key file %s already exists, refusing to overwrite", path)
	}

	encoded := base64.StdEncoding.EncodeToString(k.rawBytes()) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("writing protection key: %w", err)
	}
	return nil
}

// SigningKey returns the HKDF-derived key for ledger HMACs. The
// returned buffer is owned by the Key and released by Close; callers
// must not close it themselves.
func (k *Key) SigningKey() (*secret.Buffer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.signing == nil {
		derived, err := k.derive(signingInfo)
		if err != nil {
			return nil, err
		}
		k.signing = derived
	}
	return k.signing, nil
}

// CipherKey returns the HKDF-derived key for credential encryption.
// Owned by the Key, released by Close.
func (k *Key) CipherKey() (*secret.Buffer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cipher == nil {
		derived, err := k.derive(cipherInfo)
		if err != nil {
			return nil, err
		}
		k.cipher = derived
	}
	return k.cipher, nil
}

// derive expands the root key into a purpose-specific 32-byte subkey.
// Caller holds k.mu.
func (k *Key) derive(info string) (*secret.Buffer, error) {
	reader := hkdf.New(sha256.New, k.raw.Bytes(), nil, []byte(info))
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, fmt.Errorf("deriving %s subkey: %w", info, err)
	}
	buffer, err := secret.NewFromBytes(derived)
	if err != nil {
		return nil, fmt.Errorf("protecting derived subkey: %w", err)
	}
	return buffer, nil
}

// Close releases the root key and any derived subkeys. Idempotent.
func (k *Key) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var firstError error
	for _, buffer := range []*secret.Buffer{k.raw, k.signing, k.cipher} {
		if buffer == nil {
			continue
		}
		if err := buffer.Close(); err != nil && firstError == nil {
			firstError = err
		}
	}
	k.signing = nil
	k.cipher = nil
	return firstError
}

// rawBytes exposes the root key bytes for Save and Escrow.
func (k *Key) rawBytes() []byte {
	return k.raw.Bytes()
}
