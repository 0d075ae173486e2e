// Package version carries the build version, set at link time with
// -ldflags "-X github.com/abuseshield/federation/internal/version.Version=v1.2.3".
package version

// Version is the build version string.
var Version = "dev"
