// Package version reports build information set through ldflags or read
// from the embedded VCS stamp
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	tag       = "dev" // set via ldflags
	commit    = "123abc"
	buildTime = "now"
)

const template = "%s (%s) built at %s\nhttps://github.com/noot-app/food-explorer/releases/tag/%s"

// buildInfoReader is swapped in tests
var buildInfoReader = debug.ReadBuildInfo

// Tag returns the release tag, "dev" for local builds
func Tag() string {
	return tag
}

// String returns the release tag, commit and build time. ldflags values
// win; otherwise the VCS stamp fills commit and time.
func String() string {
	currentCommit := commit
	currentDate := buildTime

	if info, ok := buildInfoReader(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && commit == "123abc" {
				currentCommit = setting.Value
			}
			if setting.Key == "vcs.time" && buildTime == "now" {
				currentDate = setting.Value
			}
		}
	}

	return fmt.Sprintf(template, tag, currentCommit, currentDate, tag)
}
