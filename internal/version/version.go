// Package version provides build and version information for Gridworks.
package version

// Version is the current release version of Gridworks.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/gridworks-sim/gridworks/internal/version.Version=x.y.z"
var Version = "1.0.0"
