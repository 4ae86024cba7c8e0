// Package version provides build information for the deckforge binaries.
// The values can be set at build time using ldflags:
//
//	go build -ldflags "-X github.com/ramonehamilton/deckforge/internal/version.Version=v1.2.3"
package version

import "fmt"

// Version is the application version. It defaults to "dev" and can be
// overridden at build time using ldflags.
var Version = "dev"

// BuildTime is the build timestamp, set the same way as Version.
var BuildTime = "unknown"

// GetVersion returns the current application version.
func GetVersion() string {
	return Version
}

// String returns the version line printed by the binaries.
func String(app string) string {
	return fmt.Sprintf("%s version %s (build: %s)", app, Version, BuildTime)
}
