package ferry

import (
	"os"
)

// DebugEnabled controls whether or not debugging is enabled for Ferry. It is
// set automatically based on the FERRY_DEBUG environment variable.
var DebugEnabled bool

func init() {
	// Check whether or not debugging should be enabled.
	DebugEnabled = os.Getenv("FERRY_DEBUG") == "1"
}
