// Package controlloop implements the per-loop temperature control
// engine: a four-state machine (Init, Off, Idle, On) advanced on the
// scheduler tick, with a minimum-dwell timer and a hysteresis margin
// working together against short-cycling. The dwell timer bounds
// switching frequency; the margin keeps sensor noise at the threshold
// from flapping the relay. Neither alone is enough.
package controlloop

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolhouse/poolhouse-controller/internal/model"
	"github.com/poolhouse/poolhouse-controller/internal/sensor"
)

const (
	// StabilizationPeriod lets the sensor settle after boot before any
	// control decision is made.
	StabilizationPeriod = 10 * time.Second

	// MinDwell is the minimum time in a state before a temperature-
	// triggered transition is evaluated. Explicit on/off commands are
	// not gated by it.
	MinDwell = time.Minute

	// SampleInterval rate-limits loop sensor reads inside the tick.
	SampleInterval = 30 * time.Second
)

var ErrOutOfRange = errors.New("value out of range")

// Sampler produces calibrated readings for this loop.
type Sampler interface {
	Sample() (sensor.Sample, error)
	SetCalibration(offset float64)
}

// RelaySwitch is the slice of the relay gateway a loop drives.
type RelaySwitch interface {
	Set(id int, on bool) error
}

// SettingsSink persists one loop's slot of the settings record.
type SettingsSink interface {
	SaveLoop(index int, target, calibration float64, resume model.ResumeState) error
}

// Observer receives transition and sample events for telemetry and the
// history log. All methods are called from inside the tick.
type Observer interface {
	StateChanged(loop model.LoopID, from, to model.LoopState, temp float64, valid bool, at time.Time)
	Sampled(loop model.LoopID, s sensor.Sample, at time.Time)
}

type noopObserver struct{}

func (noopObserver) StateChanged(model.LoopID, model.LoopState, model.LoopState, float64, bool, time.Time) {
}
func (noopObserver) Sampled(model.LoopID, sensor.Sample, time.Time) {}

// Config carries a loop's identity and its loaded (or default)
// persisted settings.
type Config struct {
	ID          model.LoopID
	Index       int // slot in the settings record
	RelayID     int
	Target      float64
	Calibration float64
	Resume      model.ResumeState
}

type Deps struct {
	Sampler  Sampler
	Relays   RelaySwitch
	Settings SettingsSink
	Observer Observer         // optional
	Now      func() time.Time // optional, defaults to time.Now
}

// Loop owns all mutable state for one controlled heating loop. The
// scheduler tick and the command surface both mutate it, so every
// entry point takes the loop's own lock; loops never share state.
type Loop struct {
	mu sync.Mutex

	id      model.LoopID
	index   int
	relayID int

	state     model.LoopState
	enteredAt time.Time
	resume    model.ResumeState

	target      float64
	calibration float64

	temp       float64
	tempValid  bool // a valid sample has been taken at some point
	stale      bool // the most recent sample attempt failed
	lastSample time.Time

	sampler  Sampler
	relays   RelaySwitch
	settings SettingsSink
	observer Observer
	now      func() time.Time
}

func New(cfg Config, deps Deps) *Loop {
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	l := &Loop{
		id:          cfg.ID,
		index:       cfg.Index,
		relayID:     cfg.RelayID,
		state:       model.StateInit,
		resume:      cfg.Resume,
		target:      cfg.Target,
		calibration: cfg.Calibration,
		sampler:     deps.Sampler,
		relays:      deps.Relays,
		settings:    deps.Settings,
		observer:    deps.Observer,
		now:         deps.Now,
	}
	l.enteredAt = l.now()
	l.sampler.SetCalibration(cfg.Calibration)

	log.Info().
		Str("loop", string(l.id)).
		Float64("target", l.target).
		Str("resume", l.resume.String()).
		Msg("Loop initializing")

	return l
}

func (l *Loop) ID() model.LoopID { return l.id }

// Tick samples the sensor (rate-limited) and advances the state
// machine. Called from the scheduler on every tick.
func (l *Loop) Tick() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSample(now)
	l.advance(now)
}

func (l *Loop) maybeSample(now time.Time) {
	if !l.lastSample.IsZero() && now.Sub(l.lastSample) < SampleInterval {
		return
	}
	l.lastSample = now

	s, err := l.sampler.Sample()
	if err != nil {
		// Keep the last valid value for observability, but treat the
		// loop as having no data: temperature-gated transitions are
		// skipped until a good sample arrives.
		l.stale = true
		log.Warn().Err(err).Str("loop", string(l.id)).Msg("Sensor sample invalid, keeping last value")
		return
	}
	l.temp = s.Temperature
	l.tempValid = true
	l.stale = false
	l.observer.Sampled(l.id, s, now)

	log.Debug().
		Str("loop", string(l.id)).
		Float64("temp", l.temp).
		Float64("target", l.target).
		Str("state", string(l.state)).
		Msg("Loop temperature check")
}

// advance is the transition function. Off has no tick behavior: it
// exits only through an explicit command.
func (l *Loop) advance(now time.Time) {
	switch l.state {
	case model.StateInit:
		if now.Sub(l.enteredAt) < StabilizationPeriod {
			return
		}
		if l.resume == model.ResumeIdle {
			l.transition(model.StateIdle, now)
		} else {
			l.transition(model.StateOff, now)
		}

	case model.StateIdle:
		if now.Sub(l.enteredAt) < MinDwell {
			return
		}
		if l.tempValid && !l.stale && l.temp <= l.target-model.HysteresisMargin {
			l.transition(model.StateOn, now)
		}

	case model.StateOn:
		if now.Sub(l.enteredAt) < MinDwell {
			return
		}
		if l.tempValid && !l.stale && l.temp >= l.target+model.HysteresisMargin {
			l.transition(model.StateIdle, now)
		}
	}
}

// transition runs the exit hook for the old state, swaps states, then
// runs the entry hook for the new one. Callers hold l.mu.
func (l *Loop) transition(to model.LoopState, now time.Time) {
	from := l.state

	// Exit hooks. Leaving On drops the relay unconditionally, whether
	// the exit was temperature-driven or an external off command.
	if from == model.StateOn {
		l.switchRelay(false)
	}

	l.state = to
	l.enteredAt = now

	// Entry hooks. Off and Idle persist the resume state immediately;
	// On inherits the Idle resume value already on record.
	switch to {
	case model.StateOff:
		l.resume = model.ResumeOff
		l.persist()
	case model.StateIdle:
		l.resume = model.ResumeIdle
		l.persist()
	case model.StateOn:
		l.switchRelay(true)
	}

	log.Info().
		Str("loop", string(l.id)).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Loop state changed")

	l.observer.StateChanged(l.id, from, to, l.temp, l.tempValid, now)
}

func (l *Loop) switchRelay(on bool) {
	if err := l.relays.Set(l.relayID, on); err != nil {
		log.Error().Err(err).Str("loop", string(l.id)).Int("relay", l.relayID).Msg("Failed to switch loop relay")
	}
}

func (l *Loop) persist() {
	if err := l.settings.SaveLoop(l.index, l.target, l.calibration, l.resume); err != nil {
		log.Error().Err(err).Str("loop", string(l.id)).Msg("Failed to persist loop settings")
	}
}

// TurnOn moves an Off loop to Idle. In any other state it is a no-op
// success; the dwell timer never gates explicit commands.
func (l *Loop) TurnOn() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == model.StateOff {
		l.transition(model.StateIdle, l.now())
	}
}

// TurnOff moves an Idle or On loop to Off. Elsewhere it is a no-op
// success.
func (l *Loop) TurnOff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == model.StateIdle || l.state == model.StateOn {
		l.transition(model.StateOff, l.now())
	}
}

// SetTarget validates, applies and persists a new target temperature.
// Out-of-range values are rejected with no state mutation.
func (l *Loop) SetTarget(v float64) error {
	if v < model.TargetMin || v > model.TargetMax {
		return fmt.Errorf("target %.2f outside [%.0f, %.0f]: %w", v, model.TargetMin, model.TargetMax, ErrOutOfRange)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = v
	log.Info().Str("loop", string(l.id)).Float64("target", v).Msg("Target updated")
	return l.settings.SaveLoop(l.index, l.target, l.calibration, l.resume)
}

// SetCalibration swaps the calibration offset and rebases the
// last-known reading so the change is visible immediately, not just on
// the next sample.
func (l *Loop) SetCalibration(v float64) error {
	if v < model.CalibrationMin || v > model.CalibrationMax {
		return fmt.Errorf("calibration %.2f outside [%.0f, %.0f]: %w", v, model.CalibrationMin, model.CalibrationMax, ErrOutOfRange)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.calibration
	l.calibration = v
	l.sampler.SetCalibration(v)
	if l.tempValid {
		l.temp = l.temp - old + v
	}
	log.Info().Str("loop", string(l.id)).Float64("calibration", v).Msg("Calibration updated")
	return l.settings.SaveLoop(l.index, l.target, l.calibration, l.resume)
}

// Status is a read-only observability snapshot.
type Status struct {
	ID          model.LoopID    `json:"id"`
	State       model.LoopState `json:"state"`
	Target      float64         `json:"target"`
	Calibration float64         `json:"calibration"`
	Temperature float64         `json:"temperature"`
	TempValid   bool            `json:"temp_valid"`
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	temp := l.temp
	if !l.tempValid {
		temp = model.InvalidTemp
	}
	return Status{
		ID:          l.id,
		State:       l.state,
		Target:      l.target,
		Calibration: l.calibration,
		Temperature: temp,
		TempValid:   l.tempValid,
	}
}
