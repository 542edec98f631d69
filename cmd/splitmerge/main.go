package main

import (
	"os"
	"runtime/debug"

	"github.com/happyhackingspace/splitmerge/internal/cli"
)

// version is set by release builds with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.New(buildVersion()).Run(); err != nil {
		os.Exit(1)
	}
}

// buildVersion falls back to the module version recorded by go install.
func buildVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}
