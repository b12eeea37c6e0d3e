// Package version holds the build version, overridable with
// -ldflags "-X github.com/HomegrownMarine/sailing-calculations/pkg/version.Version=...".
package version

// Version is the tackanalyzer release.
var Version = "v0.3.0"
