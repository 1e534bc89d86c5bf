package app

import (
	"os"

	"github.com/sirupsen/logrus"

	"smartride/internal/config"
)

// NewLogger builds the process logger from the log configuration. Unknown
// levels fall back to info.
func NewLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}
