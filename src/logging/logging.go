// Package logging owns the process logger. Components receive or fetch the
// shared logrus instance instead of constructing their own.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Init configures the shared logger. level parses per logrus ("debug",
// "info", ...); an empty or bad level keeps info. logFile, when set, is
// opened for append; console false sends output only there.
func Init(level, logFile string, console bool) error {
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		logger.SetLevel(parsed)
	}

	var sinks []io.Writer
	if console {
		sinks = append(sinks, os.Stderr)
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		sinks = append(sinks, f)
	}
	switch len(sinks) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(sinks[0])
	default:
		logger.SetOutput(io.MultiWriter(sinks...))
	}
	return nil
}

// Get returns the shared logger.
func Get() *logrus.Logger { return logger }
