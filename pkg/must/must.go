package must

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ferry-io/ferry/pkg/logging"
)

func Close(c io.Closer, logger *logging.Logger) {
	err := c.Close()
	if err != nil {
		logger.Warnf("Unable to close: %s", err.Error())
	}
}

func Discard(d interface{ Discard() error }, logger *logging.Logger) {
	err := d.Discard()
	if err != nil {
		logger.Warnf("Unable to discard: %s", err.Error())
	}
}

func OSRemove(name string, logger *logging.Logger) {
	err := os.Remove(name)
	if err != nil {
		logger.Warnf("Unable to remove '%s': %s", name, err.Error())
	}
}

func CommandHelp(c *cobra.Command, logger *logging.Logger) {
	err := c.Help()
	if err != nil {
		logger.Warnf("Unable to help: %s", err.Error())
	}
}

