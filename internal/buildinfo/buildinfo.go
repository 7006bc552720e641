package buildinfo

import "runtime/debug"

// Set with -ldflags "-X github.com/Farras8/cek-pohon-app/internal/buildinfo.Version=..."
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	commit := Commit
	if commit == "" {
		commit = vcsRevision()
	}
	return map[string]string{
		"version": Version,
		"commit":  commit,
		"builtAt": BuiltAt,
	}
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
