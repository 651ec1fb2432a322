// Package version reports how the venok binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with -ldflags "-X github.com/conneroisu/venok/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit,omitempty"`
	Date      time.Time `json:"date,omitzero"`
	Modified  bool      `json:"modified"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

// Get combines the link-time values with the VCS stamp Go embeds in module
// builds. Link-time values win.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if t, err := time.Parse(time.RFC3339, Date); err == nil {
		info.Date = t
	}

	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && build.Main.Version != "" && build.Main.Version != "(devel)" {
		info.Version = build.Main.Version
	}
	for _, s := range build.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date.IsZero() {
				info.Date, _ = time.Parse(time.RFC3339, s.Value)
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// IsRelease reports whether the binary carries a real version.
func (i Info) IsRelease() bool {
	return i.Version != "dev" && !strings.HasPrefix(i.Version, "dev-")
}

// Short renders "v1.2.0 (abc1234)", "dev-abc1234" or "dev".
func (i Info) Short() string {
	if len(i.Commit) < 7 {
		return i.Version
	}
	if i.IsRelease() {
		return fmt.Sprintf("%s (%s)", i.Version, i.Commit[:7])
	}
	return "dev-" + i.Commit[:7]
}

// String renders every known field, one per line.
func (i Info) String() string {
	lines := []string{"Version: " + i.Version}
	if i.Commit != "" {
		commit := i.Commit
		if i.Modified {
			commit += " (dirty)"
		}
		lines = append(lines, "Commit: "+commit)
	}
	if !i.Date.IsZero() {
		lines = append(lines, "Built: "+i.Date.UTC().Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+i.GoVersion, "Platform: "+i.Platform)
	return strings.Join(lines, "\n")
}
