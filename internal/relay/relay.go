// Package relay abstracts the numbered relay outputs on the driver
// board: on/off/toggle, boot-time clear, and optional auto-off
// deadlines for the manually triggered auxiliary relays.
package relay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolhouse/poolhouse-controller/internal/model"
)

var (
	ErrUnknownRelay  = errors.New("relay id out of range")
	ErrReservedRelay = errors.New("relay is reserved for a control loop")
)

// Backend drives the physical outputs. Implementations: rpio (real
// board), Fake (tests, safe mode).
type Backend interface {
	Set(id int, on bool)
	Status(id int) bool
}

type Gateway struct {
	mu        sync.Mutex
	backend   Backend
	deadlines map[int]time.Time
}

func NewGateway(backend Backend) *Gateway {
	return &Gateway{
		backend:   backend,
		deadlines: make(map[int]time.Time),
	}
}

// IsAux reports whether a relay is free for manual control. Relays 1
// and 2 belong to the pool and sauna loops.
func IsAux(id int) bool {
	return id >= model.FirstAuxRelay && id <= model.NumRelays
}

func validate(id int) error {
	if id < 1 || id > model.NumRelays {
		return fmt.Errorf("relay %d: %w", id, ErrUnknownRelay)
	}
	return nil
}

func (g *Gateway) Set(id int, on bool) error {
	if err := validate(id); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set(id, on)
	return nil
}

// set assumes g.mu is held. A direct set always disarms any pending
// auto-off deadline for the relay.
func (g *Gateway) set(id int, on bool) {
	delete(g.deadlines, id)
	g.backend.Set(id, on)
	log.Debug().Int("relay", id).Bool("on", on).Msg("Relay switched")
}

func (g *Gateway) Toggle(id int) error {
	if err := validate(id); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set(id, !g.backend.Status(id))
	return nil
}

func (g *Gateway) Status(id int) (bool, error) {
	if err := validate(id); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.backend.Status(id), nil
}

// AllOff clears every relay. Run once at boot so an output left
// engaged by a prior firmware revision cannot stay stuck on.
func (g *Gateway) AllOff() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id := 1; id <= model.NumRelays; id++ {
		g.set(id, false)
	}
	log.Info().Msg("All relays cleared")
}

// SetFor turns a relay on and arms an auto-off deadline. Only the
// auxiliary relays may be timed.
func (g *Gateway) SetFor(id int, d time.Duration, now time.Time) error {
	if err := validate(id); err != nil {
		return err
	}
	if !IsAux(id) {
		return fmt.Errorf("relay %d: %w", id, ErrReservedRelay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.backend.Set(id, true)
	g.deadlines[id] = now.Add(d)
	log.Info().Int("relay", id).Dur("duration", d).Msg("Relay armed with auto-off deadline")
	return nil
}

// Sweep clears every relay whose auto-off deadline has elapsed. Called
// on every scheduler tick.
func (g *Gateway) Sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, deadline := range g.deadlines {
		if now.Before(deadline) {
			continue
		}
		delete(g.deadlines, id)
		g.backend.Set(id, false)
		log.Info().Int("relay", id).Msg("Relay auto-off deadline elapsed")
	}
}

// Snapshot returns the current on/off state of every relay.
func (g *Gateway) Snapshot() map[int]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	states := make(map[int]bool, model.NumRelays)
	for id := 1; id <= model.NumRelays; id++ {
		states[id] = g.backend.Status(id)
	}
	return states
}
