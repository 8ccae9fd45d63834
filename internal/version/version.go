// Package version reports the auto-proxy build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/rennerdo30/auto-proxy/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Short returns the version number, falling back to the module version
// recorded by `go install` when no ldflags were given.
func Short() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// Full returns the version line printed by `auto-proxy version`.
func Full() string {
	s := "auto-proxy " + Short()
	if GitCommit != "" {
		s += " (" + GitCommit + ")"
	}
	if BuildTime != "" {
		s += " built " + BuildTime
	}
	return fmt.Sprintf("%s, %s %s/%s", s, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
