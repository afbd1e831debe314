// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sort"

	"github.com/toolgate-foundation/toolgate/lib/cli"
	"github.com/toolgate-foundation/toolgate/lib/policy"
)

func policyCommand() *cli.Command {
	return &cli.Command{
		Name:    "policy",
		Summary: "inspect the protection policy",
		Subcommands: []*cli.Command{
			policyValidateCommand(),
		},
	}
}

func policyValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Summary: "parse and validate the policy document",
		Usage:   "toolgate policy validate [path]",
		Run: func(args []string) error {
			path := ""
			switch len(args) {
			case 0:
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Paths.PolicyFile
			case 1:
				path = args[0]
			default:
				return fmt.Errorf("at most one path argument is allowed")
			}

			document, err := policy.Load(path)
			if err != nil {
				return err
			}

			serverIDs := make([]string, 0, len(document.Servers))
			for id := range document.Servers {
				serverIDs = append(serverIDs, id)
			}
			sort.Strings(serverIDs)

			fmt.Printf("%s: valid (version %d)\n", path, document.Version)
			for _, id := range serverIDs {
				server := document.Servers[id]
				selectors := "all tools"
				if len(server.Tools) > 0 {
					selectors = fmt.Sprintf("%v", server.Tools)
				}
				fmt.Printf("  %-20s %-24q %s\n", id, server.Phrase, selectors)
			}
			for _, id := range document.AllowedUnprotectedServers {
				fmt.Printf("  %-20s (unprotected)\n", id)
			}
			return nil
		},
	}
}
