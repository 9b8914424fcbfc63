package version

import "fmt"

// Name is the binary name printed in version output.
const Name = "intruder-alarm"

var (
	// Version is the semantic version of the build, set via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time.
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns the name, version, commit and build time.
func Full() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", Name, Version, Commit, BuildTime)
}
