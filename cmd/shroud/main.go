// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Command shroud finds and redacts sensitive data in directory trees.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shroud/internal/report"
	"shroud/internal/version"
)

// exitErr carries a process exit code through cobra
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// usageError maps configuration faults and other startup failures to exit 2
func usageError(err error) error {
	return &exitErr{code: report.ExitUsage, msg: err.Error()}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return report.ExitClean
	}
	var ee *exitErr
	if errors.As(err, &ee) {
		if ee.msg != "" {
			color.New(color.FgRed).Fprintln(stderr, ee.msg)
		}
		return ee.code
	}
	// flag, argument and configuration errors
	color.New(color.FgRed).Fprintln(stderr, "Error:", err)
	return report.ExitUsage
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "shroud",
		Short:         "Find and redact sensitive data in text, images and PDFs",
		Version:       version.Short(),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(version.Info() + "\n")

	root.AddCommand(
		newScanCmd(),
		newEnginesCmd(),
		newConfigCmd(),
		newHistoryCmd(),
		newSuppressCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			return err
		},
	}
}
