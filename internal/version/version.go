/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version holds build metadata.
package version

// Version is the current version of Slotbook.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/slotbook/internal/version.Version=X.Y.Z
var Version = "0.1.0"

// Commit is the source revision, set the same way as Version.
var Commit = "unknown"

// String renders version and commit for logs and --version.
func String() string {
	if Commit == "" || Commit == "unknown" {
		return Version
	}
	short := Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return Version + " (" + short + ")"
}
