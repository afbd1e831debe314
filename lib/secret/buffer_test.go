// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"testing"
)

func TestNewFromBytesZerosSource(t *testing.T) {
	source := []byte("hunter2")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "hunter2" {
		t.Errorf("String() = %q, want %q", got, "hunter2")
	}
	if !bytes.Equal(source, make([]byte, len(source))) {
		t.Errorf("source not zeroed after NewFromBytes: %q", source)
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d): expected error", size)
		}
	}
}

func TestNewFromBytesRejectsEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Error("NewFromBytes(nil): expected error")
	}
}

func TestEqual(t *testing.T) {
	buffer, err := NewFromBytes([]byte("correct horse"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if !buffer.Equal([]byte("correct horse")) {
		t.Error("Equal(same) = false, want true")
	}
	if buffer.Equal([]byte("battery staple")) {
		t.Error("Equal(different) = true, want false")
	}
	if buffer.Equal([]byte("correct hors")) {
		t.Error("Equal(shorter) = true, want false")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	buffer, err := NewFromBytes([]byte("secret"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestAccessAfterClosePanics(t *testing.T) {
	buffer, err := NewFromBytes([]byte("secret"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	buffer.Close()

	defer func() {
		if recover() == nil {
			t.Error("Bytes after Close did not panic")
		}
	}()
	buffer.Bytes()
}

func TestEqualAfterClose(t *testing.T) {
	buffer, err := NewFromBytes([]byte("secret"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	buffer.Close()

	if buffer.Equal([]byte("secret")) {
		t.Error("Equal on closed buffer = true, want false")
	}
}
