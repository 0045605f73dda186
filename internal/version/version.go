// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

// Set at link time, e.g.
//
//	-X github.com/banshee-data/tracklets/internal/version.Version=v0.3.0
var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// Info is a snapshot of the link-time build metadata.
type Info struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{Version: Version, GitSHA: GitSHA, BuildTime: BuildTime}
}

// Dev reports whether the binary was built without version stamping.
func (i Info) Dev() bool {
	return i.Version == "" || i.Version == "dev"
}

// Short is the tag recorded in cache blob headers. Dev builds include the
// commit so blobs written by different checkouts can be told apart.
func (i Info) Short() string {
	if i.Dev() && i.GitSHA != "" && i.GitSHA != "unknown" {
		return "dev+" + i.GitSHA
	}
	return i.Version
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s, built %s)", i.Version, i.GitSHA, i.BuildTime)
}

// String renders the current build metadata for CLI output.
func String() string {
	return Get().String()
}
