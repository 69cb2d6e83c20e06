// Package build reports version information of the running binary. The
// version comes from -ldflags when set, e.g.
//
//	go build -ldflags "-X github.com/amp-labs/amp-hsm/build.Version=v1.2.0"
//
// and from the module build info otherwise.
package build

import (
	"log/slog"
	"runtime/debug"
)

// Version is set at link time. Empty means "use the module version".
var Version = "" //nolint:gochecknoglobals

const develVersion = "dev"

// Info contains build metadata of the running binary.
type Info struct {
	Version      string            `json:"version"`
	GitCommit    string            `json:"git_commit"` //nolint:tagliatelle
	GitDirty     bool              `json:"git_dirty"`  //nolint:tagliatelle
	GoVersion    string            `json:"go_version"` //nolint:tagliatelle
	Dependencies map[string]string `json:"dependencies"`
}

// Get returns the build information of the running binary.
func Get() Info {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		bi = nil
	}

	return fromBuildInfo(Version, bi)
}

func fromBuildInfo(linked string, bi *debug.BuildInfo) Info {
	info := Info{Version: linked}

	if bi != nil {
		info.GoVersion = bi.GoVersion

		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}

		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.GitCommit = setting.Value
			case "vcs.modified":
				info.GitDirty = setting.Value == "true"
			}
		}

		if len(bi.Deps) > 0 {
			info.Dependencies = make(map[string]string, len(bi.Deps))
			for _, dep := range bi.Deps {
				info.Dependencies[dep.Path] = dep.Version
			}
		}
	}

	if info.Version == "" {
		info.Version = develVersion
	}

	return info
}

// LogValue implements slog.LogValuer. Dependencies are left out.
func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", i.Version),
		slog.String("git_commit", i.GitCommit),
		slog.Bool("git_dirty", i.GitDirty),
		slog.String("go_version", i.GoVersion),
	)
}
