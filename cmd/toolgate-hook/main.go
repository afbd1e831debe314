// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// toolgate-hook is the pre-tool-call gate. An agent harness invokes
// it before every tool call with the call described in environment
// variables:
//
//	TOOLGATE_TOOL_NAME     the tool identifier, e.g. mcp__db__dropTable
//	TOOLGATE_TOOL_INPUT    the tool's argument payload (JSON, usually)
//	TOOLGATE_PROJECT_ROOT  the project the agent is working in
//
// Exit status 0 lets the call proceed; exit status 2 blocks it. All
// diagnostics, including the approval challenge, go to stderr where
// the harness relays them into the agent transcript. Any internal
// failure exits 2: the gate never fails open.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/toolgate-foundation/toolgate/lib/cli"
	"github.com/toolgate-foundation/toolgate/lib/config"
	"github.com/toolgate-foundation/toolgate/lib/gate"
	"github.com/toolgate-foundation/toolgate/lib/ledger"
	"github.com/toolgate-foundation/toolgate/lib/policy"
	"github.com/toolgate-foundation/toolgate/lib/protectkey"
)

const (
	exitAllow = 0
	exitBlock = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	toolName := os.Getenv("TOOLGATE_TOOL_NAME")
	if toolName == "" {
		// Nothing to gate. Misconfigured harnesses must not wedge
		// every tool call.
		fmt.Fprintln(os.Stderr, "toolgate-hook: TOOLGATE_TOOL_NAME not set; allowing")
		return exitAllow
	}
	rawArgs := os.Getenv("TOOLGATE_TOOL_INPUT")

	// Namespaced tool names are the only ones the gate applies to.
	// Deciding this before touching config or key material means a
	// broken installation cannot block built-in tools.
	if _, namespaced := gate.ParseToolName(toolName); !namespaced {
		return exitAllow
	}

	projectRoot := os.Getenv("TOOLGATE_PROJECT_ROOT")
	if projectRoot == "" {
		var err error
		if projectRoot, err = os.Getwd(); err != nil {
			fmt.Fprintf(os.Stderr, "toolgate-hook: resolving project root: %v\n", err)
			return exitBlock
		}
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "toolgate-hook: blocked (%s): %v\n", gate.ClassifyError(err), err)
		return exitBlock
	}
	logger := cli.NewCommandLogger(cfg.Logging.Level).With("command", "hook")

	policies, err := policy.Load(cfg.Paths.PolicyFile)
	if err != nil {
		reason := gate.ClassifyError(err)
		logger.Error("policy unavailable", "reason", reason.String(), "error", err)
		fmt.Fprintf(os.Stderr, "toolgate-hook: blocked (%s): %v\n", reason, err)
		return exitBlock
	}

	key, err := protectkey.Load(cfg.Paths.KeyFile)
	if err != nil {
		reason := gate.ClassifyError(err)
		logger.Error("protection key unavailable", "reason", reason.String(), "error", err)
		fmt.Fprintf(os.Stderr, "toolgate-hook: blocked (%s): %v\n", reason, err)
		fmt.Fprintln(os.Stderr, "run 'toolgate key generate' to provision a protection key")
		return exitBlock
	}
	defer key.Close()

	store, err := ledger.OpenStore(cfg.Ledger.Backend, cfg.Paths.LedgerFile, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "toolgate-hook: blocked (%s): %v\n", gate.ClassifyError(err), err)
		return exitBlock
	}
	defer store.Close()

	approvals, err := ledger.New(store, key, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "toolgate-hook: blocked (%s): %v\n", gate.ClassifyError(err), err)
		return exitBlock
	}

	enforcer := gate.NewEnforcer(policies, approvals, logger)
	outcome := enforcer.Check(context.Background(), toolName, rawArgs)

	switch {
	case outcome.Decision == gate.Allow:
		return exitAllow
	case outcome.Challenge != nil:
		fmt.Fprint(os.Stderr, outcome.Challenge.Message(outcome.Server, outcome.Tool))
		return exitBlock
	default:
		fmt.Fprintf(os.Stderr, "toolgate-hook: blocked (%s)", outcome.Reason)
		if outcome.Detail != "" {
			fmt.Fprintf(os.Stderr, ": %s", outcome.Detail)
		}
		fmt.Fprintln(os.Stderr)
		return exitBlock
	}
}
