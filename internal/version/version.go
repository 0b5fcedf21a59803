// Package version reports build metadata.
package version

import (
	"runtime/debug"
)

// Set with -ldflags "-X fleetforge/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = ""
)

// Info describes the running binary
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	GoVersion string
}

// Get returns the build metadata, falling back to the VCS stamp the Go
// toolchain embeds when no commit was injected at link time
func Get() Info {
	info := Info{Version: Version, Commit: Commit}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}
