// Package buildinfo carries build metadata injected with -ldflags:
//
//	-X 'github.com/m3rciful/cmdbus/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/cmdbus/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/cmdbus/core/buildinfo.Date=2026-10-01T12:00:00Z'
package buildinfo

import (
	"runtime/debug"
	"strings"
)

var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// Resolve fills values left at their defaults from the VCS stamp the Go
// toolchain embeds, so plain `go build` binaries still identify their commit.
func Resolve() (version, commit, date string) {
	version, commit, date = Version, Commit, Date
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "local" && len(s.Value) >= 7 {
				commit = s.Value[:7]
			}
		case "vcs.time":
			if date == "" {
				date = s.Value
			}
		}
	}
	return
}

// String renders "version (commit, date)".
func String() string {
	version, commit, date := Resolve()
	parts := []string{commit}
	if date != "" {
		parts = append(parts, date)
	}
	return version + " (" + strings.Join(parts, ", ") + ")"
}
