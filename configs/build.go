// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"runtime/debug"
	"time"
)

// BuildVersion is the latest tagged release.
const BuildVersion string = "v0.4.0"

// buildInfo is the VCS stamp the Go toolchain embeds in the binary.
type buildInfo struct {
	commit    string
	committed time.Time
	dirty     bool
}

func readBuildInfo() buildInfo {
	var b buildInfo

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.commit = s.Value
		case "vcs.time":
			b.committed, _ = time.Parse(time.RFC3339, s.Value)
		case "vcs.modified":
			b.dirty = s.Value == "true"
		}
	}

	return b
}

// Revision identifies the commit as "2006-01-02-abcdef12", suffixed with
// "+dirty" when the working tree had local changes.
func (b buildInfo) Revision() string {
	if b.commit == "" {
		return "unknown"
	}

	rev := b.commit[:min(len(b.commit), 8)]
	if !b.committed.IsZero() {
		rev = b.committed.UTC().Format(time.DateOnly) + "-" + rev
	}

	if b.dirty {
		rev += "+dirty"
	}

	return rev
}
