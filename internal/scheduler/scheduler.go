// Package scheduler runs the fixed-rate tick that drives everything:
// relay auto-off sweep, loop FSM advancement (which rate-limits its own
// sensor sampling), and the occasional ambient poll. One goroutine,
// no work outside the tick.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolhouse/poolhouse-controller/internal/controlloop"
	"github.com/poolhouse/poolhouse-controller/internal/relay"
	"github.com/poolhouse/poolhouse-controller/internal/sensor"
	"github.com/poolhouse/poolhouse-controller/internal/telemetry"
)

const (
	DefaultTick            = 100 * time.Millisecond
	DefaultAmbientInterval = 60 * time.Second
)

// AmbientReading is the latest ambient temperature/humidity snapshot.
type AmbientReading struct {
	Sample sensor.Sample `json:"sample"`
	At     time.Time     `json:"at"`
	Valid  bool          `json:"valid"`
}

type Scheduler struct {
	loops   []*controlloop.Loop
	relays  *relay.Gateway
	ambient *sensor.Reader // nil when no ambient sensor is fitted

	tick            time.Duration
	ambientInterval time.Duration
	now             func() time.Time

	mu              sync.Mutex
	lastAmbient     AmbientReading
	lastAmbientPoll time.Time
}

func New(loops []*controlloop.Loop, relays *relay.Gateway, ambient *sensor.Reader) *Scheduler {
	return &Scheduler{
		loops:           loops,
		relays:          relays,
		ambient:         ambient,
		tick:            DefaultTick,
		ambientInterval: DefaultAmbientInterval,
		now:             time.Now,
	}
}

// Run blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().
		Dur("tick", s.tick).
		Int("loops", len(s.loops)).
		Msg("Starting scheduler")

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler stopped")
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step performs one tick. Exported so tests can drive the schedule
// without real time.
func (s *Scheduler) Step() {
	now := s.now()
	s.relays.Sweep(now)
	for _, l := range s.loops {
		l.Tick()
	}
	s.maybeSampleAmbient(now)
}

func (s *Scheduler) maybeSampleAmbient(now time.Time) {
	if s.ambient == nil {
		return
	}
	s.mu.Lock()
	if !s.lastAmbientPoll.IsZero() && now.Sub(s.lastAmbientPoll) < s.ambientInterval {
		s.mu.Unlock()
		return
	}
	s.lastAmbientPoll = now
	s.mu.Unlock()

	sample, err := s.ambient.Sample()
	if err != nil {
		log.Warn().Err(err).Msg("Ambient sample invalid")
		return
	}

	telemetry.Gauge("ambient.temperature", sample.Temperature)
	if sample.HasHumidity {
		telemetry.Gauge("ambient.humidity", sample.Humidity)
	}

	s.mu.Lock()
	s.lastAmbient = AmbientReading{Sample: sample, At: now, Valid: true}
	s.mu.Unlock()
}

// Ambient returns the last valid ambient reading for the status API.
func (s *Scheduler) Ambient() AmbientReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAmbient
}
