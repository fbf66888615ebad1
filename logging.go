package eventreg

import (
	"fmt"
	"io"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger accepted by every component of this
// package. A nil *Logger is valid and discards everything.
type Logger = logiface.Logger[logiface.Event]

// Log categories, attached to every entry as the "category" field.
const (
	categoryLoop         = "loop"
	categoryTimer        = "timer"
	categoryRegistration = "registration"
)

// NewLogger returns a JSON logger writing to w, filtering below level.
func NewLogger(w io.Writer, level logiface.Level) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// ParseLevel maps a level keyword ("debug", "info", "warning", ...) to a
// logiface.Level. Both syslog keywords and common aliases are accepted.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off", "none":
		return logiface.LevelDisabled, nil
	case "emerg", "emergency", "panic":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "informational", "":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("%w: unknown log level %q", CodeInvalidArg, s)
}

// logTeardown reports a suppressed teardown failure.
func logTeardown(l *Logger, category string, err *TeardownError) {
	l.Warning().
		Str("category", category).
		Str("op", err.Op).
		Stringer("key", err.Key).
		Err(err.Err).
		Log("teardown failed")
}
