// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os/user"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shroud/internal/config"
	"shroud/internal/report"
	"shroud/internal/suppressions"
)

func newSuppressCmd() *cobra.Command {
	var configPath, rulesPath string

	load := func(stderr io.Writer) (*suppressions.Manager, error) {
		path := rulesPath
		if path == "" {
			cfg, err := config.LoadConfigOrDefault(configPath, warnLogger(stderr))
			if err != nil {
				return nil, err
			}
			path = cfg.Suppressions
		}
		if path == "" {
			return nil, fmt.Errorf("no suppression file configured")
		}
		return suppressions.Load(path)
	}

	cmd := &cobra.Command{
		Use:   "suppress",
		Short: "Manage suppression rules for accepted false positives",
		Long: `Suppression rules match the fingerprint shown for each finding in a report.
Suppressed findings are counted as rejected and are never redacted.`,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file")
	cmd.PersistentFlags().StringVar(&rulesPath, "file", "", "Suppression rules file (default: from configuration)")

	var (
		category string
		pathGlob string
		reason   string
		expires  time.Duration
	)
	add := &cobra.Command{
		Use:   "add <fingerprint>",
		Short: "Suppress a finding by fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := load(cmd.ErrOrStderr())
			if err != nil {
				return usageError(err)
			}
			rule := suppressions.Rule{
				Fingerprint: args[0],
				Category:    category,
				Path:        pathGlob,
				Reason:      reason,
			}
			if u, err := user.Current(); err == nil {
				rule.CreatedBy = u.Username
			}
			if expires > 0 {
				at := time.Now().Add(expires).UTC()
				rule.ExpiresAt = &at
			}
			rule, err = m.Add(rule)
			if err != nil {
				return usageError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added suppression %s for %s\n", rule.ID, rule.Fingerprint)
			return nil
		},
	}
	add.Flags().StringVar(&category, "category", "", "Only suppress findings of this category")
	add.Flags().StringVar(&pathGlob, "path", "", "Only suppress under paths matching this glob")
	add.Flags().StringVar(&reason, "reason", "", "Why the finding is accepted (required)")
	add.Flags().DurationVar(&expires, "expires", 0, "Expire the rule after this long (e.g. 720h)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List suppression rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := load(cmd.ErrOrStderr())
			if err != nil {
				return usageError(err)
			}
			rules := m.Rules()
			out := cmd.OutOrStdout()
			if len(rules) == 0 {
				fmt.Fprintln(out, "No suppression rules found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFINGERPRINT\tCATEGORY\tPATH\tEXPIRES\tREASON")
			now := time.Now()
			for _, r := range rules {
				exp := "-"
				if r.ExpiresAt != nil {
					exp = r.ExpiresAt.Local().Format(time.DateOnly)
					if r.Expired(now) {
						exp += " (expired)"
					}
				}
				if !r.Enabled {
					exp += " disabled"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Fingerprint, dash(r.Category), dash(r.Path), exp, r.Reason)
			}
			return tw.Flush()
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a suppression rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := load(cmd.ErrOrStderr())
			if err != nil {
				return usageError(err)
			}
			if err := m.Remove(args[0]); err != nil {
				return exitError(report.ExitUsage, "%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed suppression %s\n", args[0])
			return nil
		},
	}

	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired suppression rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := load(cmd.ErrOrStderr())
			if err != nil {
				return usageError(err)
			}
			n, err := m.CleanupExpired()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned up %d expired suppression rules\n", n)
			return nil
		},
	}

	cmd.AddCommand(add, list, remove, cleanup)
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
