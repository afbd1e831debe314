// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// toolgate is the administrative CLI for the approval gate: key
// provisioning and escrow, credential sealing, policy validation,
// and approval ledger inspection.
package main

import (
	"fmt"
	"os"

	"github.com/toolgate-foundation/toolgate/lib/cli"
	"github.com/toolgate-foundation/toolgate/lib/config"
	"github.com/toolgate-foundation/toolgate/lib/version"
)

func main() {
	root := &cli.Command{
		Name:    "toolgate",
		Summary: "administer the protected action approval gate",
		Description: `toolgate administers the approval gate that guards dangerous
tool calls behind cryptographically verified human approvals.`,
		Subcommands: []*cli.Command{
			keyCommand(),
			credentialCommand(),
			policyCommand(),
			approvalsCommand(),
			{
				Name:    "version",
				Summary: "print version information",
				Run: func(args []string) error {
					fmt.Printf("toolgate %s\n", version.Info())
					return nil
				},
			},
		},
	}

	if err := root.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration the same way the gate binaries
// do: TOOLGATE_CONFIG when set, defaults under the project root
// otherwise.
func loadConfig() (*config.Config, error) {
	projectRoot := os.Getenv("TOOLGATE_PROJECT_ROOT")
	if projectRoot == "" {
		var err error
		if projectRoot, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("resolving project root: %w", err)
		}
	}
	return config.Load(projectRoot)
}
