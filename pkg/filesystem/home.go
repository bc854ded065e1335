package filesystem

import (
	"os"

	"github.com/pkg/errors"
)

// HomeDirectory is the cached path to the current user's home directory. We
// cache this because we don't expect it to change during the process lifetime
// and certain lookup paths are surprisingly expensive.
var HomeDirectory string

func init() {
	// Grab the current user's home directory and verify that it isn't empty.
	// When compiling without cgo the $HOME environment variable is used to
	// compute this value and we can't guarantee something isn't wonky with the
	// environment.
	if homeDirectory, err := os.UserHomeDir(); err != nil {
		panic(errors.Wrap(err, "unable to determine home directory"))
	} else if homeDirectory == "" {
		panic(errors.New("home directory is empty"))
	} else {
		HomeDirectory = homeDirectory
	}
}
