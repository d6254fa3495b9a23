// Package version exposes the build version: -ldflags override first, VCS
// revision from build info second, "dev" fallback.
package version

import "runtime/debug"

// AppName is used in version strings and log banners.
const AppName = "parley"

// gitCommitOverride is set via -ldflags for builds without a .git directory.
var gitCommitOverride string

// GitCommit is the short (8 char) commit hash, or "dev" when unknown.
var GitCommit = initGitCommit()

func initGitCommit() string {
	if gitCommitOverride != "" {
		return shorten(gitCommitOverride)
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return shorten(s.Value)
		}
	}
	return "dev"
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "parley/<commit>" for log banners and user-agent strings.
func Full() string {
	return AppName + "/" + GitCommit
}
