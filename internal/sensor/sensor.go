// Package sensor turns raw device reads into validated, calibrated
// temperature samples with bounded worst-case latency.
package sensor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolhouse/poolhouse-controller/internal/model"
)

const (
	// MaxAttempts bounds device communication retries per sample so a
	// flaky bus cannot stall the caller indefinitely.
	MaxAttempts = 4

	// FinalRetryBackoff is inserted before the last attempt to let the
	// bus settle.
	FinalRetryBackoff = time.Second
)

// ErrImplausible marks a sample the driver delivered intact but that
// cannot be physically right. The reader does not burn retries on it;
// the next polling cycle tries again.
var ErrImplausible = errors.New("implausible sensor sample")

// Sample is one validated reading in Celsius, before unit conversion.
type Sample struct {
	Temperature float64
	Humidity    float64
	HasHumidity bool
}

// Driver is the raw device capability: one read, which fails on CRC
// errors, timeouts, or missing presence pulses.
type Driver interface {
	Read() (Sample, error)
}

type Reader struct {
	driver Driver
	unit   model.Unit

	// RejectImplausible discards samples a heated enclosure could
	// never produce (negative ambient temperature). Used for the
	// humidity-capable ambient sensor.
	RejectImplausible bool

	mu          sync.Mutex
	calibration float64

	sleep func(time.Duration)
}

func NewReader(driver Driver, unit model.Unit) *Reader {
	return &Reader{
		driver: driver,
		unit:   unit,
		sleep:  time.Sleep,
	}
}

func (r *Reader) SetCalibration(offset float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calibration = offset
}

func (r *Reader) Calibration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calibration
}

// Sample retries the device up to MaxAttempts times, converts to the
// configured unit and applies the calibration offset. The error return
// is the INVALID outcome; the caller keeps its previous value.
func (r *Reader) Sample() (Sample, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		s, err := r.driver.Read()
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Int("attempt", attempt).Msg("Sensor read failed")
			if attempt == MaxAttempts-1 {
				r.sleep(FinalRetryBackoff)
			}
			continue
		}
		if r.RejectImplausible && s.Temperature < 0 {
			return Sample{}, fmt.Errorf("ambient temperature %.1f below zero: %w", s.Temperature, ErrImplausible)
		}
		if r.unit == model.UnitFahrenheit {
			s.Temperature = s.Temperature*9.0/5.0 + 32.0
		}
		s.Temperature += r.Calibration()
		return s, nil
	}
	return Sample{}, fmt.Errorf("sensor read failed after %d attempts: %w", MaxAttempts, lastErr)
}
