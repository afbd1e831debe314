// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package credfile reads credentials from a key=value file whose
// values may be sealed with the credential cipher. A file is safer
// than environment variables because its contents never show up in
// /proc/*/environ, and sealed values are additionally unreadable
// without the protection key.
package credfile

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/toolgate-foundation/toolgate/lib/credcipher"
	"github.com/toolgate-foundation/toolgate/lib/protectkey"
	"github.com/toolgate-foundation/toolgate/lib/secret"
)

// Source reads credentials from a key=value file.
//
// File format (one credential per line):
//
//	DATABASE_URL=postgres://...
//	GITHUB_PAT=ENC[...]
//
// Lines starting with # are comments. Empty lines are ignored.
// Values wrapped in the ENC[...] sentinel are decrypted with the
// protection key; everything else is used verbatim.
//
// Thread safety: Get is safe for concurrent use. The file is loaded
// lazily on first Get via sync.Once. Close must not be called
// concurrently with Get.
type Source struct {
	// Path is the path to the credentials file.
	Path string

	// Key decrypts sealed values. When nil, sealed values resolve to
	// nothing rather than to their ciphertext.
	Key *protectkey.Key

	once        sync.Once
	credentials map[string]*secret.Buffer
}

// Get retrieves a credential by name. Names are normalized to the
// file key format: github-pat looks up GITHUB_PAT. Returns nil when
// the credential is absent or a sealed value cannot be decrypted.
func (s *Source) Get(name string) *secret.Buffer {
	s.once.Do(s.load)
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return s.credentials[key]
}

// Names returns the credential keys present in the file, sorted.
func (s *Source) Names() []string {
	s.once.Do(s.load)
	names := make([]string, 0, len(s.credentials))
	for name := range s.credentials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases all credential buffers.
func (s *Source) Close() error {
	s.once.Do(s.load)
	for key, buffer := range s.credentials {
		buffer.Close()
		delete(s.credentials, key)
	}
	return nil
}

// load parses the credentials file. Called via sync.Once from Get.
func (s *Source) load() {
	s.credentials = make(map[string]*secret.Buffer)

	if s.Path == "" {
		return
	}

	file, err := os.Open(s.Path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		index := strings.Index(line, "=")
		if index <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:index])
		value := strings.TrimSpace(line[index+1:])

		if credcipher.IsEncrypted(value) {
			// A sealed value that fails to decrypt stays absent.
			// Handing out ciphertext would only leak it into tool
			// arguments.
			if s.Key == nil {
				continue
			}
			if buffer := credcipher.Decrypt(value, s.Key); buffer != nil {
				s.credentials[key] = buffer
			}
			continue
		}

		buffer, err := secret.NewFromBytes([]byte(value))
		if err != nil {
			continue
		}
		s.credentials[key] = buffer
	}
}

// SetValue writes or replaces one key in the credentials file,
// preserving comments, blank lines, and the order of existing
// entries. The file is created with owner-only permissions when
// missing.
func SetValue(path, key, value string) error {
	key = strings.ToUpper(strings.ReplaceAll(key, "-", "_"))

	var lines []string
	replaced := false

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading credentials file: %w", err)
	}
	if len(data) > 0 {
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			trimmed := strings.TrimSpace(line)
			if index := strings.Index(trimmed, "="); index > 0 &&
				!strings.HasPrefix(trimmed, "#") &&
				strings.TrimSpace(trimmed[:index]) == key {
				lines = append(lines, key+"="+value)
				replaced = true
				continue
			}
			lines = append(lines, line)
		}
	}

	if !replaced {
		lines = append(lines, key+"="+value)
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return nil
}
