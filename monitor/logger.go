package monitor

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a logrus logger from the configured level and output.
// Unknown levels fall back to info; a broken log file falls back to stdout.
func NewLogger(level, output, file string) *logrus.Logger {
	logger := logrus.New()

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if file == "" {
		file = "derivbot.log"
	}

	var writers []io.Writer
	switch output {
	case "file":
		if fd, err := openLogFile(file); err != nil {
			logger.Warnf("open log file: %v, falling back to console", err)
			writers = []io.Writer{os.Stdout}
		} else {
			writers = []io.Writer{fd}
		}
	case "both":
		if fd, err := openLogFile(file); err != nil {
			writers = []io.Writer{os.Stdout}
		} else {
			writers = []io.Writer{os.Stdout, fd}
		}
	default:
		writers = []io.Writer{os.Stdout}
	}

	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return logger
}

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}
