package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolhouse/poolhouse-controller/internal/history"
	"github.com/poolhouse/poolhouse-controller/internal/model"
	"github.com/poolhouse/poolhouse-controller/internal/sensor"
)

// Monitor implements the control loop observer: every transition is
// gauged, logged to history, and published; every sample is gauged and
// logged. DB and Publisher are each optional.
type Monitor struct {
	DB        *sql.DB
	Publisher Publisher
}

// stateGauge maps a loop state to a numeric gauge value.
func stateGauge(s model.LoopState) float64 {
	switch s {
	case model.StateOff:
		return 1
	case model.StateIdle:
		return 2
	case model.StateOn:
		return 3
	default:
		return 0
	}
}

func (m *Monitor) StateChanged(loop model.LoopID, from, to model.LoopState, temp float64, valid bool, at time.Time) {
	Gauge("loop.state", stateGauge(to), fmt.Sprintf("loop:%s", loop))

	if m.DB != nil {
		err := history.RecordTransition(m.DB, history.Transition{
			Loop:      loop,
			FromState: from,
			ToState:   to,
			Temp:      temp,
			TempValid: valid,
			At:        at,
		})
		if err != nil {
			log.Warn().Err(err).Str("loop", string(loop)).Msg("Failed to log transition")
		}
	}

	if m.Publisher != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"loop": loop,
			"from": from,
			"to":   to,
			"at":   at.UTC().Format(time.RFC3339),
		})
		if err := m.Publisher.PublishStatus(payload); err != nil {
			log.Warn().Err(err).Msg("Failed to publish state change")
		}
	}
}

func (m *Monitor) Sampled(loop model.LoopID, s sensor.Sample, at time.Time) {
	Gauge("loop.temperature", s.Temperature, fmt.Sprintf("loop:%s", loop))
	if s.HasHumidity {
		Gauge("ambient.humidity", s.Humidity, fmt.Sprintf("loop:%s", loop))
	}

	if m.DB != nil {
		if err := history.RecordSample(m.DB, loop, s.Temperature, at); err != nil {
			log.Warn().Err(err).Str("loop", string(loop)).Msg("Failed to log sample")
		}
	}
}
