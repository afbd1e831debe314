// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Toolgate
// components.
//
// Configuration is loaded from a single YAML file specified by the
// TOOLGATE_CONFIG environment variable or the --config flag. When
// neither is given, the defaults rooted at <project>/.toolgate apply.
// Environment variables never override file values; the only
// expansion performed is ${VAR} and ${VAR:-default} inside paths, for
// portability across machines.
package config
