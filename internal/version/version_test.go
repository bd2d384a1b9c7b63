// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoUsesLinkerValues(t *testing.T) {
	oldV, oldC, oldD := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = oldV, oldC, oldD })

	Version, GitCommit, BuildDate = "1.4.0", "0123456789abcdef", "2026-01-02"
	info := Info()
	assert.True(t, strings.HasPrefix(info, "shroud 1.4.0 (commit 0123456789ab"), info)
	assert.Contains(t, info, "built 2026-01-02")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)
	assert.Equal(t, "1.4.0", Short())
}
