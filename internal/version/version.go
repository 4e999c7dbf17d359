package version

import "fmt"

// Build metadata, set with -ldflags "-X patient-monitor/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the build metadata for the version command.
func String() string {
	return fmt.Sprintf("patient-monitor %s\ncommit: %s\nbuilt: %s", Version, Commit, BuildDate)
}
