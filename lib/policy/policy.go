// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// ErrPolicyMissing reports that the policy document does not exist.
// The gate treats this as a fail-closed configuration error.
var ErrPolicyMissing = errors.New("policy document not found")

// ErrPolicyCorrupt reports that the policy document exists but could
// not be parsed or failed validation.
var ErrPolicyCorrupt = errors.New("policy document corrupt")

// Document is the parsed protection policy.
type Document struct {
	// Version is the document format version. Currently always 1.
	Version int `json:"version"`

	// Servers maps a logical server ID to its protection policy.
	Servers map[string]ServerPolicy `json:"servers"`

	// AllowedUnprotectedServers lists server IDs that are explicitly
	// exempt from protection. Everything not listed here and not in
	// Servers is protected by default.
	AllowedUnprotectedServers []string `json:"allowed_unprotected_servers"`
}

// ServerPolicy is the protection requirement for one server.
type ServerPolicy struct {
	// Phrase is the human approval phrase for this server, e.g.
	// "APPROVE DB". Unique across all servers, case-insensitive.
	Phrase string `json:"phrase"`

	// Tools selects which tools are protected: "*" for all, or
	// literal tool names / doublestar glob patterns. An empty list
	// protects all tools.
	Tools []string `json:"tools"`

	// CredentialKeys names the credentials this server's tools may
	// need, resolved through the credential file at call time.
	CredentialKeys []string `json:"credential_keys"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals and validates the document.
func Parse(data []byte) (*Document, error) {
	stripped := jsonc.ToJSON(data)

	var document Document
	if err := json.Unmarshal(stripped, &document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyCorrupt, err)
	}
	if err := document.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyCorrupt, err)
	}
	return &document, nil
}

// Load reads and parses the policy document at path. Returns
// ErrPolicyMissing if the file does not exist.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPolicyMissing
		}
		return nil, fmt.Errorf("reading policy document: %w", err)
	}

	document, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return document, nil
}

// Validate checks structural invariants: a known version, non-empty
// phrases that start with APPROVE, and phrase uniqueness across all
// servers.
func (d *Document) Validate() error {
	if d.Version != 1 {
		return fmt.Errorf("unsupported policy version %d, want 1", d.Version)
	}

	seenPhrases := make(map[string]string, len(d.Servers))
	for serverID, server := range d.Servers {
		if serverID == "" {
			return fmt.Errorf("empty server ID")
		}

		phrase := canonicalPhrase(server.Phrase)
		if phrase == "" {
			return fmt.Errorf("server %q has no approval phrase", serverID)
		}
		words := strings.Fields(phrase)
		if words[0] != "APPROVE" || len(words) < 2 {
			return fmt.Errorf("server %q phrase %q must be of the form \"APPROVE <WORD>...\"", serverID, server.Phrase)
		}
		if previous, duplicate := seenPhrases[phrase]; duplicate {
			return fmt.Errorf("servers %q and %q share the phrase %q; phrases route confirmations and must be unique", previous, serverID, server.Phrase)
		}
		seenPhrases[phrase] = serverID
	}

	for _, serverID := range d.AllowedUnprotectedServers {
		if _, listed := d.Servers[serverID]; listed {
			return fmt.Errorf("server %q is both protected and allow-listed as unprotected", serverID)
		}
	}
	return nil
}

// canonicalPhrase normalizes a phrase for comparison: uppercase,
// single spaces between words.
func canonicalPhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ToUpper(phrase)), " ")
}
