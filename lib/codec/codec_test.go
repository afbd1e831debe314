// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalIsDeterministic(t *testing.T) {
	// Map iteration order is randomized in Go; deterministic encoding
	// must still produce identical bytes across encodings.
	value := map[string]any{
		"command": "DROP TABLE users",
		"dry_run": false,
		"limit":   int64(10),
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding %d differs from first encoding", i)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	payload := []any{"pending", "K7XQ2M", "db", "dropTable", int64(1772452800)}
	encoded, err := Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded []any
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != len(payload) {
		t.Fatalf("decoded %d elements, want %d", len(decoded), len(payload))
	}
	if decoded[1] != "K7XQ2M" {
		t.Errorf("decoded[1] = %v, want K7XQ2M", decoded[1])
	}
}

func TestUnmarshalMapTarget(t *testing.T) {
	encoded, err := Marshal(map[string]any{"nested": map[string]any{"key": "value"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	top, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type %T, want map[string]any", decoded)
	}
	if _, ok := top["nested"].(map[string]any); !ok {
		t.Errorf("nested type %T, want map[string]any", top["nested"])
	}
}
