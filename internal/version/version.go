// Package version holds build metadata injected via ldflags.
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns "<version> (<commit>, <date>)".
func String() string {
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}

// UserAgent identifies a ragstream binary in outgoing requests.
func UserAgent(component string) string {
	return fmt.Sprintf("ragstream-%s/%s", component, Version)
}
