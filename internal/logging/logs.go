package logging

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var current atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(InfoLevel).With().Timestamp().Logger()
	current.Store(&l)
}

// Logger returns the process logger for callers that want structured fields.
func Logger() *zerolog.Logger {
	return current.Load()
}

func Debugf(format string, args ...any) {
	Logger().Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	Logger().Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	Logger().Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	Logger().Error().Msgf(format, args...)
}

// Fatalf logs at fatal level and exits the process.
func Fatalf(format string, args ...any) {
	Logger().Fatal().Msgf(format, args...)
}
