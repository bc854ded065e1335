package ferry

import (
	"fmt"
)

const (
	// VersionMajor represents the current major version of Ferry.
	VersionMajor = 0
	// VersionMinor represents the current minor version of Ferry.
	VersionMinor = 3
	// VersionPatch represents the current patch version of Ferry.
	VersionPatch = 0
	// VersionTag represents a tag to be appended to the Ferry version string.
	// It must not contain spaces. If empty, no tag is appended to the version
	// string.
	VersionTag = ""
)

// Version provides a stringified version of the current Ferry version.
var Version string

// init performs global initialization.
func init() {
	// Compute the stringified version.
	if VersionTag != "" {
		Version = fmt.Sprintf("%d.%d.%d-%s", VersionMajor, VersionMinor, VersionPatch, VersionTag)
	} else {
		Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
	}
}
