package version

import "fmt"

// Set at build time through -ldflags "-X".
var (
	App       string = "UserGate"
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
	BuildOS   string
	BuildArch string
)

// Short returns the release version, or "dev" for untagged builds, followed by
// the abbreviated commit when one was stamped in.
func Short() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	if commit := shortCommit(); commit != "" {
		return v + "+" + commit
	}
	return v
}

// PrintVersion prints the build information reported by `usergate -v`
func PrintVersion() {
	fmt.Printf("%s %s\n", App, Short())
	for _, field := range []struct{ label, value string }{
		{"Build time", BuildTime},
		{"Go version", GoVersion},
	} {
		if field.value != "" {
			fmt.Printf("%s: %s\n", field.label, field.value)
		}
	}
	if BuildOS != "" && BuildArch != "" {
		fmt.Printf("Platform: %s/%s\n", BuildOS, BuildArch)
	}
}

func shortCommit() string {
	if len(GitCommit) > 7 {
		return GitCommit[:7]
	}
	return GitCommit
}
