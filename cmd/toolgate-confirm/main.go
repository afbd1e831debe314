// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// toolgate-confirm processes one line of human input before it
// reaches the agent. The harness passes the line in
// TOOLGATE_USER_INPUT, or on stdin when the variable is unset.
//
// Ordinary prose is echoed to stdout unchanged and the program exits
// 0: the harness forwards it to the agent. A completed approval
// attempt ("APPROVE DB C1K7Q2") is consumed instead: on success the
// program reports the confirmation on stderr and exits 0 without
// echoing; on failure it reports why and exits 1. Either way the
// attempt never reaches the agent, which keeps codes out of the
// model's context.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/toolgate-foundation/toolgate/lib/cli"
	"github.com/toolgate-foundation/toolgate/lib/config"
	"github.com/toolgate-foundation/toolgate/lib/confirm"
	"github.com/toolgate-foundation/toolgate/lib/ledger"
	"github.com/toolgate-foundation/toolgate/lib/policy"
	"github.com/toolgate-foundation/toolgate/lib/protectkey"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "toolgate-confirm: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	line, ok := os.LookupEnv("TOOLGATE_USER_INPUT")
	if !ok {
		var err error
		if line, err = readLine(); err != nil {
			return err
		}
	}

	// Fast path: prose needs no config, no key, no ledger. This also
	// means a broken installation cannot swallow ordinary input.
	if _, isAttempt := confirm.Parse(line).(confirm.ApprovalAttempt); !isAttempt {
		fmt.Println(line)
		return nil
	}

	projectRoot := os.Getenv("TOOLGATE_PROJECT_ROOT")
	if projectRoot == "" {
		var err error
		if projectRoot, err = os.Getwd(); err != nil {
			return fmt.Errorf("resolving project root: %w", err)
		}
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		return err
	}
	logger := cli.NewCommandLogger(cfg.Logging.Level).With("command", "confirm")

	policies, err := policy.Load(cfg.Paths.PolicyFile)
	if err != nil {
		return err
	}
	key, err := protectkey.Load(cfg.Paths.KeyFile)
	if err != nil {
		return err
	}
	defer key.Close()

	store, err := ledger.OpenStore(cfg.Ledger.Backend, cfg.Paths.LedgerFile, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	approvals, err := ledger.New(store, key, nil, logger)
	if err != nil {
		return err
	}

	processor := confirm.NewProcessor(policies, approvals, logger)
	outcome := processor.Process(context.Background(), line)

	switch {
	case outcome.Err != nil:
		return fmt.Errorf("approval rejected: %w", outcome.Err)
	case outcome.Approved != nil:
		fmt.Fprintf(os.Stderr, "approved: %s.%s may run once (code %s)\n",
			outcome.Approved.Server, outcome.Approved.Tool, outcome.Approved.Code)
		return nil
	default:
		if outcome.Notice != "" {
			fmt.Fprintf(os.Stderr, "toolgate-confirm: %s\n", outcome.Notice)
		}
		fmt.Println(line)
		return nil
	}
}

// readLine reads one line from stdin. When stdin is a terminal the
// program is being driven by hand, which works but is not how the
// harness runs it, so say so.
func readLine() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "toolgate-confirm: reading one line from the terminal (normally driven by the agent harness)")
	}

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return "", nil
	}
	return scanner.Text(), nil
}
