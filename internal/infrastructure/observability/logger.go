package observability

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// InitLogger builds the process logger. Every entry carries the service name.
func InitLogger(level, service string, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stdout
	}

	return zerolog.New(output).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Caller().
		Str("service", service).
		Logger()
}

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
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// ForOrder returns a child logger tagged with the order being worked on.
func ForOrder(logger zerolog.Logger, orderID int64, merchantTxID string) zerolog.Logger {
	l := logger.With().Int64("order_id", orderID)
	if merchantTxID != "" {
		l = l.Str("merchant_tx_id", merchantTxID)
	}
	return l.Logger()
}
