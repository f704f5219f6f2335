package observability

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Level comes from LOG_LEVEL (default
// info); LOG_PRETTY=1 switches to console output for local runs.
func NewLogger() zerolog.Logger {
	var w io.Writer = os.Stderr
	if os.Getenv("LOG_PRETTY") == "1" {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	level := zerolog.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
