// Package buildinfo stores build-time metadata shared across packages.
package buildinfo

// Version is set via ldflags during build. Defaults to "dev".
var Version = "dev"

// Commit is set via ldflags during build.
var Commit = "none"

// UserAgent identifies presence in outgoing HTTP requests.
func UserAgent() string {
	return "presence/" + Version
}
