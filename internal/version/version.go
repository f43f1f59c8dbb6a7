package version

import (
	"runtime/debug"
)

// Release is the shell protocol version reported in the launch banner.
// Protocol clients match on the banner prefix, not this value, so it is
// safe to bump freely.
const Release = "2.4.0"

// String reports the release, annotated with the module version when the
// binary was built from a tagged checkout.
func String() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Release
	}
	v := info.Main.Version
	if v == "" || v == "(devel)" {
		return Release
	}
	return Release + " (" + v + ")"
}
