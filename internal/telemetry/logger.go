package telemetry

import (
	"github.com/sirupsen/logrus"

	"github.com/kenneth/pinenut/internal/config"
	"github.com/kenneth/pinenut/internal/debug"
)

// NewLogrusLogger builds a *logrus.Logger from a TelemetryConfig, the
// same level-name/JSON-formatter switch the teacher's command-line
// entrypoints use to configure logrus.StandardLogger() at startup. The
// DEBUG/LOG_LEVEL=debug environment override recognized by
// internal/debug takes precedence over cfg.Level, so an operator chasing
// a live incident doesn't have to edit and hot-reload the config file
// just to get verbose output.
func NewLogrusLogger(cfg config.TelemetryConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug.Enabled() {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	if cfg.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
