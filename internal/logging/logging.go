package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init installs the global logger. An empty path logs to stderr, which
// is what systemd and the test harness want.
func Init(level zerolog.Level, path string) {
	var sink io.Writer = os.Stderr
	if path != "" {
		logFile, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			panic(fmt.Errorf("failed to open log file: %w", err))
		}
		sink = zerolog.MultiLevelWriter(logFile)
	}

	logger := zerolog.New(sink).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	if level == zerolog.DebugLevel {
		log.Debug().Msg("Log level set to DEBUG")
	}
}
