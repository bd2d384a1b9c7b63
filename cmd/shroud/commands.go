// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shroud/internal/config"
	"shroud/internal/ledger"
	"shroud/internal/ocr"
	"shroud/internal/raster"
	"shroud/internal/report"
)

const probeTimeout = 10 * time.Second

func newEnginesCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "engines",
		Short: "Check that Tesseract and pdftoppm are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadDotEnv()
			cfg, err := config.LoadConfigOrDefault(configPath, warnLogger(cmd.ErrOrStderr()))
			if err != nil {
				return usageError(err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()

			missing := 0
			out := cmd.OutOrStdout()
			tess, err := ocr.NewTesseract(ocr.TesseractOptions{Path: cfg.Engines.TesseractPath, ExtraArgs: cfg.Engines.TesseractArgs})
			if err == nil {
				missing += probeLine(ctx, out, "tesseract", tess.Binary(), tess)
			} else {
				missing += missingLine(out, "tesseract", err)
			}
			pop, err := raster.NewPoppler(cfg.Engines.PopplerPath)
			if err == nil {
				missing += probeLine(ctx, out, "pdftoppm", pop.Binary(), pop)
			} else {
				missing += missingLine(out, "pdftoppm", err)
			}

			if missing > 0 {
				return exitError(report.ExitFailures, "%d engine(s) unavailable: images and PDFs will be skipped", missing)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Configuration file")
	return cmd
}

// probeLine prints one engine row and returns 1 when the engine does not run
func probeLine(ctx context.Context, w io.Writer, name, binary string, p ocr.Prober) int {
	ver, err := p.Probe(ctx)
	if err != nil {
		return missingLine(w, name, err)
	}
	fmt.Fprintf(w, "%s %-10s %s (%s)\n", color.GreenString("ok"), name, binary, ver)
	return 0
}

func missingLine(w io.Writer, name string, err error) int {
	fmt.Fprintf(w, "%s %-10s %v\n", color.RedString("--"), name, err)
	return 1
}

func newConfigCmd() *cobra.Command {
	f := &scanFlags{}
	var listProfiles bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f, warnLogger(cmd.ErrOrStderr()))
			if err != nil {
				return usageError(err)
			}
			out := cmd.OutOrStdout()
			if listProfiles {
				for _, name := range cfg.ListProfiles() {
					fmt.Fprintf(out, "%-12s %s\n", name, cfg.Profiles[name].Description)
				}
				return nil
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "Configuration file")
	flags.StringVar(&f.profile, "profile", "", "Apply this profile before printing")
	flags.StringVar(&f.mode, "mode", "", "Output mode: copy, in_place or report")
	flags.BoolVar(&listProfiles, "profiles", false, "List profiles instead")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		ledgerPath string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scans from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ledgerPath == "" {
				cfg, err := config.LoadConfigOrDefault(configPath, warnLogger(cmd.ErrOrStderr()))
				if err != nil {
					return usageError(err)
				}
				ledgerPath = cfg.Ledger.Path
			}
			if ledgerPath == "" {
				return exitError(report.ExitUsage, "no ledger configured")
			}
			store, err := ledger.Open(ledgerPath)
			if err != nil {
				return usageError(err)
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), runs)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "Configuration file")
	flags.StringVar(&ledgerPath, "ledger", "", "Scan history database path")
	flags.IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func printHistory(w io.Writer, runs []ledger.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No scans recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tMODE\tFILES\tREDACTED\tFLAGGED\tSKIPPED\tFAILED\tROOTS")
	for _, r := range runs {
		started := r.StartedAt.Local().Format(time.DateTime)
		if r.FinishedAt.IsZero() {
			started += " (unfinished)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			shortID(r.RunID), started, r.Mode, r.Files, r.Redacted, r.Flagged, r.Skipped, r.Failed,
			strings.Join(r.Roots, ","))
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
