// Package version holds build information set via ldflags:
//
//	go build -ldflags "-X github.com/HerbHall/leasetrace/internal/version.Version=v0.2.0 \
//	  -X github.com/HerbHall/leasetrace/internal/version.GitCommit=abc1234 \
//	  -X github.com/HerbHall/leasetrace/internal/version.BuildDate=2026-01-01T00:00:00Z"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Short returns the version alone, for log fields and User-Agent headers.
func Short() string {
	return Version
}

// Info returns a formatted version string for display.
func Info() string {
	return fmt.Sprintf("leasetrace %s (%s) built %s %s/%s",
		Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
}

// Map returns the build information as key/value pairs for structured output.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go":         runtime.Version(),
		"platform":   runtime.GOOS + "/" + runtime.GOARCH,
	}
}
