// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/toolgate-foundation/toolgate/lib/cli"
	"github.com/toolgate-foundation/toolgate/lib/protectkey"
	"github.com/toolgate-foundation/toolgate/lib/secret"
)

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:    "key",
		Summary: "manage the protection key",
		Subcommands: []*cli.Command{
			keyGenerateCommand(),
			keyRecoverCommand(),
			keyEscrowIdentityCommand(),
		},
	}
}

func keyGenerateCommand() *cli.Command {
	var escrowRecipients []string

	return &cli.Command{
		Name:    "generate",
		Summary: "generate and install a new protection key",
		Usage:   "toolgate key generate [--escrow age1...]",
		Examples: []cli.Example{
			{
				Description: "generate a key with operator escrow",
				Command:     "toolgate key generate --escrow age1qqq... > escrow.b64",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("generate", pflag.ContinueOnError)
			flags.StringSliceVar(&escrowRecipients, "escrow", nil,
				"age recipient to escrow the key to (repeatable)")
			return flags
		},
		Run: func(args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			key, err := protectkey.Generate()
			if err != nil {
				return err
			}
			defer key.Close()

			if err := key.Save(cfg.Paths.KeyFile); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "protection key written to %s\n", cfg.Paths.KeyFile)

			if len(escrowRecipients) > 0 {
				ciphertext, err := key.Escrow(escrowRecipients)
				if err != nil {
					return err
				}
				// The ciphertext goes to stdout for cold storage; it
				// is useless without an operator identity.
				fmt.Println(ciphertext)
			}
			return nil
		},
	}
}

func keyRecoverCommand() *cli.Command {
	var identityFile string

	return &cli.Command{
		Name:    "recover",
		Summary: "recover an escrowed protection key",
		Usage:   "toolgate key recover --identity-file key.age < escrow.b64",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("recover", pflag.ContinueOnError)
			flags.StringVar(&identityFile, "identity-file", "",
				"file holding the operator age identity (AGE-SECRET-KEY-1...)")
			return flags
		},
		Run: func(args []string) error {
			if identityFile == "" {
				return fmt.Errorf("--identity-file is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			identityData, err := os.ReadFile(identityFile)
			if err != nil {
				return fmt.Errorf("reading identity file: %w", err)
			}
			identity, err := secret.NewFromBytes([]byte(strings.TrimSpace(string(identityData))))
			if err != nil {
				return err
			}
			defer identity.Close()

			ciphertextData, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading escrow ciphertext: %w", err)
			}

			key, err := protectkey.RecoverEscrow(strings.TrimSpace(string(ciphertextData)), identity)
			if err != nil {
				return err
			}
			defer key.Close()

			if err := key.Save(cfg.Paths.KeyFile); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "recovered protection key written to %s\n", cfg.Paths.KeyFile)
			return nil
		},
	}
}

func keyEscrowIdentityCommand() *cli.Command {
	return &cli.Command{
		Name:    "escrow-identity",
		Summary: "generate an operator identity for key escrow",
		Description: `Generates an age identity for key escrow. The public recipient
(for 'toolgate key generate --escrow') goes to stdout; the private
identity goes to stderr and must be stored off the gated machine.`,
		Run: func(args []string) error {
			identity, recipient, err := protectkey.GenerateEscrowIdentity()
			if err != nil {
				return err
			}
			defer identity.Close()

			fmt.Fprintf(os.Stderr, "# Private identity (keep off this machine):\n%s\n", identity.String())
			fmt.Println(recipient)
			return nil
		},
	}
}
