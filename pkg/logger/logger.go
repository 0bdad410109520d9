// Package logger builds the leveled loggers used across the toolchain.
//
// Loggers are passed around explicitly. Nothing here is global.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

// EnvLogLevel names the environment variable holding the log level:
// one of debug, info, warn, error or off.
const EnvLogLevel = "FACEVERIFY_LOG_LEVEL"

const header = "${time_rfc3339} ${level} [${prefix}]"

// New returns a logger writing to stderr, leveled by EnvLogLevel.
func New(prefix string) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(os.Stderr)
	l.SetHeader(header)
	lvl, _ := ParseLevel(os.Getenv(EnvLogLevel))
	l.SetLevel(lvl)
	return l
}

// Null returns a logger which discards everything.
func Null() *log.Logger {
	l := log.New("null")
	l.SetOutput(io.Discard)
	return l
}

// WithPrefix copies l with another prefix. l is not modified.
func WithPrefix(l *log.Logger, prefix string) *log.Logger {
	c := log.New(prefix)
	c.SetOutput(l.Output())
	c.SetHeader(header)
	c.SetLevel(l.Level())
	return c
}

// ParseLevel reads a level name. Unknown names yield INFO and false.
func ParseLevel(name string) (log.Lvl, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return log.DEBUG, true
	case "", "info":
		return log.INFO, true
	case "warn":
		return log.WARN, true
	case "error":
		return log.ERROR, true
	case "off":
		return log.OFF, true
	default:
		return log.INFO, false
	}
}
