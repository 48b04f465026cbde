// Package version reports the InterviewKit build. The variables can be set
// at build time using ldflags:
//
//	go build -ldflags "-X github.com/AltairaLabs/InterviewKit/runtime/version.version=1.0.0"
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	devVersion     = "dev"
	shortCommitLen = 7
	vcsRevisionKey = "vcs.revision"
	vcsModifiedKey = "vcs.modified"
)

// Build-time variables.
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// Info describes the running binary.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Dirty   bool   `json:"dirty,omitempty"`
	Built   string `json:"built,omitempty"`
}

// Get returns the build description, falling back to the module build info
// when no ldflags were given.
func Get() Info {
	info := Info{Version: version, Commit: gitCommit, Built: buildDate}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == devVersion && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == vcsRevisionKey && info.Commit == "" && s.Value != "":
			info.Commit = s.Value[:min(shortCommitLen, len(s.Value))]
		case s.Key == vcsModifiedKey && gitCommit == "":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// GetVersion returns the version string.
func GetVersion() string {
	return Get().Version
}

// String renders the description for `interviewd version`.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "interviewd version %s", i.Version)
	if i.Commit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", i.Commit)
		if i.Dirty {
			b.WriteString(" (dirty)")
		}
	}
	if i.Built != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", i.Built)
	}
	return b.String()
}

// LogAttrs returns the description as slog key-value pairs.
func (i Info) LogAttrs() []any {
	attrs := []any{"version", i.Version}
	if i.Commit != "" {
		attrs = append(attrs, "commit", i.Commit)
	}
	if i.Dirty {
		attrs = append(attrs, "dirty", true)
	}
	if i.Built != "" {
		attrs = append(attrs, "built", i.Built)
	}
	return attrs
}
