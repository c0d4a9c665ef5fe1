// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init sets the global logrus level and formatter. Unknown levels fall back
// to info.
func Init(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if err != nil && level != "" {
		logrus.WithField("level", level).Warn("unknown log level, using info")
	}
}
