// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/toolgate-foundation/toolgate/lib/cli"
	"github.com/toolgate-foundation/toolgate/lib/credcipher"
	"github.com/toolgate-foundation/toolgate/lib/credfile"
	"github.com/toolgate-foundation/toolgate/lib/protectkey"
	"github.com/toolgate-foundation/toolgate/lib/secret"
)

func credentialCommand() *cli.Command {
	return &cli.Command{
		Name:    "credential",
		Summary: "seal and inspect credentials",
		Subcommands: []*cli.Command{
			credentialEncryptCommand(),
			credentialGetCommand(),
			credentialListCommand(),
		},
	}
}

func credentialEncryptCommand() *cli.Command {
	var printOnly bool

	return &cli.Command{
		Name:    "encrypt",
		Summary: "seal a credential value under the protection key",
		Usage:   "toolgate credential encrypt <NAME>",
		Examples: []cli.Example{
			{
				Description: "seal a token and store it in the credentials file",
				Command:     "toolgate credential encrypt GITHUB_PAT",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("encrypt", pflag.ContinueOnError)
			flags.BoolVar(&printOnly, "print", false,
				"print the sealed value instead of updating the credentials file")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one credential name is required")
			}
			name := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			key, err := protectkey.Load(cfg.Paths.KeyFile)
			if err != nil {
				return err
			}
			defer key.Close()

			plaintext, err := readSecretValue()
			if err != nil {
				return err
			}
			defer plaintext.Close()

			sealed, err := credcipher.Encrypt(plaintext.Bytes(), key)
			if err != nil {
				return err
			}

			if printOnly {
				fmt.Println(sealed)
				return nil
			}
			if err := credfile.SetValue(cfg.Paths.CredentialsFile, name, sealed); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "sealed %s into %s\n", name, cfg.Paths.CredentialsFile)
			return nil
		},
	}
}

func credentialGetCommand() *cli.Command {
	return &cli.Command{
		Name:    "get",
		Summary: "print a credential value (decrypting if sealed)",
		Usage:   "toolgate credential get <NAME>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one credential name is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			key, err := protectkey.Load(cfg.Paths.KeyFile)
			if err != nil {
				return err
			}
			defer key.Close()

			source := &credfile.Source{Path: cfg.Paths.CredentialsFile, Key: key}
			defer source.Close()

			buffer := source.Get(args[0])
			if buffer == nil {
				return fmt.Errorf("no credential %q in %s", args[0], cfg.Paths.CredentialsFile)
			}
			if term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Fprintln(os.Stderr, "warning: printing a secret to the terminal")
			}
			fmt.Println(buffer.String())
			return nil
		},
	}
}

func credentialListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Summary: "list credential names in the credentials file",
		Run: func(args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			source := &credfile.Source{Path: cfg.Paths.CredentialsFile}
			if key, err := protectkey.Load(cfg.Paths.KeyFile); err == nil {
				defer key.Close()
				source.Key = key
			} else {
				fmt.Fprintln(os.Stderr, "warning: protection key unavailable; sealed credentials are omitted")
			}
			defer source.Close()

			for _, name := range source.Names() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

// readSecretValue reads the credential plaintext. On a terminal it
// uses a no-echo prompt; otherwise it reads one line from stdin so
// the command can be scripted.
func readSecretValue() (*secret.Buffer, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "value: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading value: %w", err)
		}
		return secret.NewFromBytes(raw)
	}

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading value: %w", err)
		}
		return nil, fmt.Errorf("no value on stdin")
	}
	return secret.NewFromBytes([]byte(scanner.Text()))
}
