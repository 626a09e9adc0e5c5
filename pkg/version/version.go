// Package version reports build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time, e.g. -ldflags "-X github.com/goclaw/sigslot/pkg/version.Version=v1.2.0".
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func init() {
	if GitCommit != "unknown" {
		return
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				GitCommit = s.Value
			}
		}
	}
}

// Info returns the build metadata as string pairs, suitable for JSON or log attributes.
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
		"goVersion": runtime.Version(),
	}
}

// String renders a one-line banner such as "sigslot dev (unknown, go1.24.0)".
func String(app string) string {
	return fmt.Sprintf("%s %s (%s, %s)", app, Version, GitCommit, runtime.Version())
}
