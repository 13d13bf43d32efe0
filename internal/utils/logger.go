package utils

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Store(&l)
}

// SetLogger replaces the process-wide logger used by the Log* helpers.
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}

// Logger returns the process-wide logger for call sites that want structured fields.
func Logger() *zerolog.Logger {
	return logger.Load()
}

func LogDebug(format string, v ...interface{}) {
	Logger().Debug().Caller(1).Msgf(format, v...)
}

func LogInfo(format string, v ...interface{}) {
	Logger().Info().Msgf(format, v...)
}

func LogError(format string, v ...interface{}) {
	Logger().Error().Caller(1).Msgf(format, v...)
}

func LogWarning(format string, v ...interface{}) {
	Logger().Warn().Caller(1).Msgf(format, v...)
}

func TimeTrack(start time.Time, name string) {
	Logger().Debug().Dur("elapsed", time.Since(start)).Msgf("%s concluído", name)
}
