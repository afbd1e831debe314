// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package credcipher

import (
	"strings"
	"testing"

	"github.com/toolgate-foundation/toolgate/lib/protectkey"
)

func newKey(t *testing.T) *protectkey.Key {
	t.Helper()
	key, err := protectkey.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := newKey(t)

	encrypted, err := Encrypt([]byte("sk-ant-secret-value"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !IsEncrypted(encrypted) {
		t.Errorf("IsEncrypted(%q) = false, want true", encrypted)
	}

	plaintext := Decrypt(encrypted, key)
	if plaintext == nil {
		t.Fatal("Decrypt returned nil for valid ciphertext")
	}
	defer plaintext.Close()
	if got := plaintext.String(); got != "sk-ant-secret-value" {
		t.Errorf("Decrypt = %q, want original plaintext", got)
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	key := newKey(t)

	first, err := Encrypt([]byte("same plaintext"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	second, err := Encrypt([]byte("same plaintext"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if first == second {
		t.Error("two encryptions of identical plaintext produced identical ciphertext")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	key := newKey(t)
	wrongKey := newKey(t)

	encrypted, err := Encrypt([]byte("secret"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if got := Decrypt(encrypted, wrongKey); got != nil {
		got.Close()
		t.Error("Decrypt with wrong key returned plaintext, want nil")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	key := newKey(t)

	encrypted, err := Encrypt([]byte("secret"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Flip one character inside the ciphertext component.
	tampered := []byte(encrypted)
	index := strings.LastIndex(encrypted, ":") + 2
	if tampered[index] == 'A' {
		tampered[index] = 'B'
	} else {
		tampered[index] = 'A'
	}

	if got := Decrypt(string(tampered), key); got != nil {
		got.Close()
		t.Error("Decrypt of tampered value returned plaintext, want nil")
	}
}

func TestDecryptMalformedValues(t *testing.T) {
	key := newKey(t)

	malformed := []string{
		"",
		"plaintext value",
		"ENC[]",
		"ENC[onlyonepart]",
		"ENC[two:parts]",
		"ENC[a:b:c:d]",
		"ENC[!!!:" + strings.Repeat("A", 24) + ":AAAA]",
		"ENC[AAAA:AAAA:AAAA]", // IV and tag wrong length
		"ENC[AAAAAAAAAAAAAAAA:AAAA:AAAA",
	}
	for _, value := range malformed {
		if got := Decrypt(value, key); got != nil {
			got.Close()
			t.Errorf("Decrypt(%q) returned non-nil, want nil", value)
		}
	}
}

func TestIsEncrypted(t *testing.T) {
	key := newKey(t)

	encrypted, err := Encrypt([]byte("value"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	cases := []struct {
		value string
		want  bool
	}{
		{encrypted, true},
		{"plaintext", false},
		{"ENC[not:three", false},
		{"ENC[a:b]", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsEncrypted(c.value); got != c.want {
			t.Errorf("IsEncrypted(%q) = %v, want %v", c.value, got, c.want)
		}
	}
}

func TestEncryptRejectsEmptyPlaintext(t *testing.T) {
	key := newKey(t)
	if _, err := Encrypt(nil, key); err == nil {
		t.Error("Encrypt(nil) succeeded, want error")
	}
}
