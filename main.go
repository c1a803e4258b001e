package main

import (
	"runtime/debug"

	"github.com/kensar/kiosk/cmd"
)

// Version is set by release builds via -ldflags "-X main.Version=v1.2.3".
var Version = "dev"

// buildVersion resolves the version to report. Release builds inject one;
// `go install module@version` records it as the main module version; source
// builds become "devel+<rev>[+dirty]", which disables self-update.
func buildVersion(injected string, info *debug.BuildInfo) string {
	if injected != "" && injected != "dev" {
		return injected
	}
	if info == nil {
		return injected
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	rev := settings["vcs.revision"]
	if rev == "" {
		return injected
	}
	v := "devel+" + rev[:min(12, len(rev))]
	if settings["vcs.modified"] == "true" {
		v += "+dirty"
	}
	return v
}

func main() {
	info, _ := debug.ReadBuildInfo()
	cmd.SetVersion(buildVersion(Version, info))
	cmd.Execute()
}
