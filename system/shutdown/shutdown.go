package shutdown

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/poolhouse/poolhouse-controller/internal/relay"
)

// FailSafe drops every relay and closes the stores. Run on any exit
// path so a pump or heater can never be left energized.
func FailSafe(gw *relay.Gateway, closers ...io.Closer) {
	if gw != nil {
		gw.AllOff()
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource during shutdown")
		}
	}
	log.Info().Msg("Fail-safe shutdown complete")
}

func WithError(err error, msg string, gw *relay.Gateway, closers ...io.Closer) {
	log.Error().Err(err).Msg(msg)
	FailSafe(gw, closers...)
	os.Exit(1)
}
