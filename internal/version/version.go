// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package version reports build metadata. Release builds set the variables
// with -ldflags; other builds fall back to the module build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "0.0.0-development"
	GitCommit = ""
	BuildDate = ""
)

type build struct {
	version, commit, date string
	dirty                 bool
}

func current() build {
	b := build{version: Version, commit: GitCommit, date: BuildDate}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	if b.version == "0.0.0-development" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.commit == "" {
				b.commit = s.Value
			}
		case "vcs.time":
			if b.date == "" {
				b.date = s.Value
			}
		case "vcs.modified":
			b.dirty = s.Value == "true"
		}
	}
	return b
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Short returns the version number
func Short() string {
	return current().version
}

// Info is the one-line description printed by `shroud version`
func Info() string {
	b := current()
	commit := orUnknown(b.commit)
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if b.dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("shroud %s (commit %s, built %s, %s %s/%s)",
		b.version, commit, orUnknown(b.date), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
