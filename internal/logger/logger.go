// Package logger provides the shared structured logger for the application.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger writing JSON to stdout. It ensures the
// logger is initialized only once; the level defaults to info.
func Init(level string) {
	once.Do(func() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil || level == "" {
			lvl = zerolog.InfoLevel
		}
		defaultLogger = zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
		defaultLogger.Info().Str("level", lvl.String()).Msg("Logger initialized")
	})
}

// Get returns the initialized default logger, initializing it if needed.
func Get() zerolog.Logger {
	Init("")
	return defaultLogger
}

// Info logs an informational message with optional key/value fields.
func Info(msg string, fields map[string]interface{}) {
	l := Get()
	l.Info().Fields(fields).Msg(msg)
}

// Warn logs a warning message with optional key/value fields.
func Warn(msg string, fields map[string]interface{}) {
	l := Get()
	l.Warn().Fields(fields).Msg(msg)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, fields map[string]interface{}) {
	l := Get()
	l.Error().Err(err).Fields(fields).Msg(msg)
}

// Debug logs a debug message with optional key/value fields.
func Debug(msg string, fields map[string]interface{}) {
	l := Get()
	l.Debug().Fields(fields).Msg(msg)
}
