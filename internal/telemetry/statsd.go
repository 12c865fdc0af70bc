// Package telemetry fans loop events out to DogStatsD gauges, the MQTT
// status topic, and the sqlite history log. Observability only; none
// of it feeds back into control decisions.
package telemetry

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"
)

var dogstatsd *statsd.Client

// InitMetrics connects the DogStatsD client. Safe to skip: Gauge is a
// no-op while unconfigured.
func InitMetrics(addr, namespace string, tags []string) {
	if addr == "" {
		log.Info().Msg("Metrics agent not configured, gauges disabled")
		return
	}

	var err error
	dogstatsd, err = statsd.New(addr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return
	}
	dogstatsd.Namespace = namespace
	dogstatsd.Tags = tags

	log.Info().
		Str("addr", addr).
		Str("namespace", namespace).
		Strs("tags", tags).
		Msg("Metrics initialized")
}

func Gauge(name string, value float64, tags ...string) {
	if dogstatsd == nil {
		return
	}
	if err := dogstatsd.Gauge(name, value, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
	}
}
