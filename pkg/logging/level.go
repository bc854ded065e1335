package logging

import (
	"os"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/ferry"
)

// Level represents a log level. Its value hierarchy is designed to be ordered
// and comparable by value.
type Level uint

const (
	// LevelDisabled indicates that logging is completely disabled.
	LevelDisabled Level = iota
	// LevelError indicates that only fatal errors are logged.
	LevelError
	// LevelWarn indicates that both fatal and non-fatal errors are logged.
	LevelWarn
	// LevelInfo indicates that basic execution information is logged (in
	// addition to all errors).
	LevelInfo
	// LevelDebug indicates that advanced execution information is logged (in
	// addition to basic information and all errors).
	LevelDebug
	// LevelTrace indicates that low-level execution information is logged (in
	// addition to all other execution information and all errors).
	LevelTrace
)

// NameToLevel converts a string-based representation of a log level to the
// appropriate Level value. It returns a boolean indicating whether or not the
// conversion was valid. If the name is invalid, LevelDisabled is returned.
func NameToLevel(name string) (Level, bool) {
	switch name {
	case "disabled":
		return LevelDisabled, true
	case "error":
		return LevelError, true
	case "warn":
		return LevelWarn, true
	case "info":
		return LevelInfo, true
	case "debug":
		return LevelDebug, true
	case "trace":
		return LevelTrace, true
	default:
		return LevelDisabled, false
	}
}

// String provides a human-readable representation of a log level.
func (l Level) String() string {
	switch l {
	case LevelDisabled:
		return "disabled"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText, allowing
// log levels to be specified in configuration files.
func (l *Level) UnmarshalText(text []byte) error {
	level, ok := NameToLevel(string(text))
	if !ok {
		return errors.Errorf("unknown log level: %s", string(text))
	}
	*l = level
	return nil
}

// defaultLevel computes the initial root logging level. It honors the
// FERRY_LOG_LEVEL environment variable if set to a valid level name, and
// otherwise falls back to warnings (or debugging, if debugging is enabled).
func defaultLevel() Level {
	if name := os.Getenv("FERRY_LOG_LEVEL"); name != "" {
		if level, ok := NameToLevel(name); ok {
			return level
		}
	}
	if ferry.DebugEnabled {
		return LevelDebug
	}
	return LevelWarn
}
