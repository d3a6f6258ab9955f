package obs

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	loggerOnce sync.Once
	logger     zerolog.Logger
)

// Logger returns the shared structured logger used across the service.
// Log level is taken from REELHUB_LOG_LEVEL on first use (default info).
func Logger() *zerolog.Logger {
	loggerOnce.Do(func() {
		level := zerolog.InfoLevel
		if raw := strings.TrimSpace(os.Getenv("REELHUB_LOG_LEVEL")); raw != "" {
			if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
				level = parsed
			}
		}
		logger = zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	})
	return &logger
}
