// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"strings"
	"testing"
)

func TestGenerateCodeShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != CodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), CodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q, not in alphabet", code, r)
			}
		}
	}
}

func TestCodeAlphabetExcludesConfusables(t *testing.T) {
	for _, confusable := range "0O1IL" {
		if strings.ContainsRune(codeAlphabet, confusable) {
			t.Errorf("alphabet contains confusable character %q", confusable)
		}
	}
}

func TestSnapshotArgsCanonicalizesJSON(t *testing.T) {
	first, firstDigest := snapshotArgs(`{"b": 1, "a": 2}`)
	second, secondDigest := snapshotArgs(`{"a": 2, "b": 1}`)

	if first != second {
		t.Errorf("equal payloads snapshot differently: %q vs %q", first, second)
	}
	if firstDigest != secondDigest {
		t.Error("equal payloads produced different digests")
	}
	if first != `{"a":2,"b":1}` {
		t.Errorf("snapshot = %q, want compact sorted JSON", first)
	}
}

func TestSnapshotArgsDegradesOnMalformedPayload(t *testing.T) {
	raw := `{"unterminated": `
	args, digest := snapshotArgs(raw)
	if args != raw {
		t.Errorf("malformed payload snapshot = %q, want raw string preserved", args)
	}
	if digest == "" {
		t.Error("malformed payload has empty digest")
	}
}

func TestSnapshotArgsDigestDistinguishesPayloads(t *testing.T) {
	_, first := snapshotArgs(`{"table": "users"}`)
	_, second := snapshotArgs(`{"table": "orders"}`)
	if first == second {
		t.Error("different payloads produced identical digests")
	}
}
