// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/toolgate-foundation/toolgate/lib/cli"
	"github.com/toolgate-foundation/toolgate/lib/ledger"
	"github.com/toolgate-foundation/toolgate/lib/protectkey"
)

func approvalsCommand() *cli.Command {
	return &cli.Command{
		Name:    "approvals",
		Summary: "inspect the approval ledger",
		Subcommands: []*cli.Command{
			approvalsListCommand(),
			approvalsSweepCommand(),
		},
	}
}

// openLedger builds a read-write ledger from the configuration, for
// admin inspection commands.
func openLedger() (*ledger.Ledger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	key, err := protectkey.Load(cfg.Paths.KeyFile)
	if err != nil {
		return nil, nil, err
	}

	logger := cli.NewCommandLogger(cfg.Logging.Level).With("command", "approvals")
	store, err := ledger.OpenStore(cfg.Ledger.Backend, cfg.Paths.LedgerFile, logger)
	if err != nil {
		key.Close()
		return nil, nil, err
	}

	approvals, err := ledger.New(store, key, nil, logger)
	if err != nil {
		store.Close()
		key.Close()
		return nil, nil, err
	}

	cleanup := func() {
		store.Close()
		key.Close()
	}
	return approvals, cleanup, nil
}

func approvalsListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Summary: "list pending and approved requests",
		Run: func(args []string) error {
			approvals, cleanup, err := openLedger()
			if err != nil {
				return err
			}
			defer cleanup()

			requests, err := approvals.Requests(context.Background())
			if err != nil {
				return err
			}
			if len(requests) == 0 {
				fmt.Println("no approval requests")
				return nil
			}

			now := time.Now().UTC()
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "CODE\tSERVER\tTOOL\tSTATUS\tEXPIRES")
			for _, request := range requests {
				expires := request.ExpiresAt.Format(time.RFC3339)
				if request.Expired(now) {
					expires = "expired"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					request.Code, request.Server, request.Tool, request.Status, expires)
			}
			return tw.Flush()
		},
	}
}

func approvalsSweepCommand() *cli.Command {
	return &cli.Command{
		Name:    "sweep",
		Summary: "remove expired approval requests",
		Run: func(args []string) error {
			approvals, cleanup, err := openLedger()
			if err != nil {
				return err
			}
			defer cleanup()

			removed, err := approvals.Sweep(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("removed %d expired request(s)\n", removed)
			return nil
		},
	}
}
