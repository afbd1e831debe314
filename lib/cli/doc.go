// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the command tree for the toolgate admin
// binary: nested subcommand dispatch, pflag flag parsing, structured
// help output, and typo suggestions for unknown commands.
package cli
