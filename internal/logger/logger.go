package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger for the web server: stdout, json or console
func Init(level, format string) zerolog.Logger {
	return initTo(os.Stdout, level, format, true)
}

// InitCLI configures the global logger for the command line client. Logs go
// to stderr so they never mix with command output.
func InitCLI(level string) zerolog.Logger {
	return initTo(os.Stderr, level, "console", false)
}

func initTo(out io.Writer, level, format string, withCaller bool) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	if strings.ToLower(format) != "json" {
		// Console format with colors
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if withCaller {
		ctx = ctx.Caller()
	}
	logger := ctx.Logger()

	// Set the global logger
	log.Logger = logger
	return logger
}

// parseLogLevel parses string log level to zerolog level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
