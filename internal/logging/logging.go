package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Production environments log JSON, everything else
// uses the text formatter with full timestamps.
func New(env, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if env == "production" || env == "prod" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("invalid log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
