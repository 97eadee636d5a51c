// Package sysutil holds process-level helpers shared by cmd/server and
// config: global logger setup and environment value parsing.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger sets the global level from lvl and points the global logger at
// w. With pretty, output goes through zerolog's console writer for local
// development; otherwise JSON lines with RFC 3339 UTC timestamps.
func InitLogger(w io.Writer, lvl string, pretty bool) {
	zerolog.SetGlobalLevel(ParseLevel(lvl))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel maps a configured level name to zerolog. "warning" is accepted
// for warn; blank, unknown and disabling names fall back to info so a typo
// never silences the service.
func ParseLevel(lvl string) zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(lvl))
	if s == "warning" {
		s = "warn"
	}
	l, err := zerolog.ParseLevel(s)
	if err != nil || l == zerolog.NoLevel || l == zerolog.Disabled || l == zerolog.TraceLevel {
		return zerolog.InfoLevel
	}
	return l
}

// ParseFlag reads a boolean switch. ok is false when v is neither a known
// true word (1, true, yes, y, on) nor a known false word (0, false, no, n, off).
func ParseFlag(v string) (val, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	}
	return false, false
}

// Version prefers APP_VERSION from the deploy environment over the version
// stamped into the binary.
func Version(build string) string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return build
}
