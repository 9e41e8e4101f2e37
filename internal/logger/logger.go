// Package logger builds the logrus loggers shared by every package.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New creates a logger tagged with the component name. level is one of
// debug/info/warn/error (default info); format is json or text (default text).
func New(component, level, format string) *logrus.Entry {
	return NewWithOutput(component, level, format, os.Stderr)
}

// NewWithOutput is New writing to out.
func NewWithOutput(component, level, format string, out io.Writer) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(out)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "ts",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	log.SetLevel(ParseLevel(level))

	return log.WithField("component", component)
}

// ParseLevel maps a config string to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Discard returns a logger that drops everything; used by tests and as the
// default when a caller passes nil.
func Discard() *logrus.Entry {
	return NewWithOutput("discard", "error", "text", io.Discard)
}
