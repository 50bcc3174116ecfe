// Package buildinfo carries version metadata stamped at link time:
//
//	-X 'github.com/m3rciful/forgebot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/forgebot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/forgebot/core/buildinfo.Date=2025-08-30T12:00:00Z'
package buildinfo

import (
	"fmt"
	"log/slog"
)

var (
	Version = "dev"
	Commit  = "local"
	// Date is the RFC3339 build timestamp; empty for local builds.
	Date = ""
)

// String renders "version (commit, date)" for CLI output.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}

// Attrs returns the build metadata as log attributes.
func Attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("version", Version),
		slog.String("commit", Commit),
	}
	if Date != "" {
		attrs = append(attrs, slog.String("built", Date))
	}
	return attrs
}
