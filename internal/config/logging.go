package config

import (
	"github.com/sirupsen/logrus"
)

// ConfigureLogging sets the global logrus formatter and level. Development
// runs get human readable output; everything else logs JSON.
func (c *Config) ConfigureLogging() {
	if c.IsDevelopment() {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(c.App.LogLevel)
	if err != nil {
		logrus.Warnf("Unknown LOG_LEVEL %q, using info", c.App.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
