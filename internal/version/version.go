// Package version holds the build stamp of the english backend binaries.
// The values are set with -ldflags "-X englishapp/internal/version.Version=...".
package version

import "runtime"

var (
	// Version is the release tag, or "dev" for local builds
	Version = "dev"
	// Commit is the git commit hash
	Commit = "dev"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Info is the build stamp reported by GET /version and the startup log
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// Get returns the build stamp for the named service
func Get(service string) Info {
	return Info{
		Service:   service,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String renders the stamp on one line for CLI output
func (i Info) String() string {
	return i.Service + " " + i.Version + " (" + i.Commit + ", built " + i.BuildTime + ", " + i.GoVersion + ")"
}
