package buildinfo

import "fmt"

// BuildInfo holds all sorts of information about the build of an executable artifact.
type BuildInfo struct {
	Version    string
	CommitHash string
	BuildDate  string
}

// New returns the build info, substituting placeholders for unset fields.
func New(version, commitHash, buildDate string) BuildInfo {
	if version == "" {
		version = "dev"
	}
	if commitHash == "" {
		commitHash = "n/a"
	}
	if buildDate == "" {
		buildDate = "<unknown>"
	}
	return BuildInfo{Version: version, CommitHash: commitHash, BuildDate: buildDate}
}

// String returns the build info as a string.
func (i BuildInfo) String() string {
	return fmt.Sprintf("version %s (%s) built on %s", i.Version, i.CommitHash, i.BuildDate)
}

// KeysAndValues returns the build info as structured logging key-value pairs.
func (i BuildInfo) KeysAndValues() []any {
	return []any{"version", i.Version, "commit", i.CommitHash, "build-date", i.BuildDate}
}
