package relay

import (
	"fmt"

	"github.com/stianeikeland/go-rpio"
)

// RPIOBackend drives the relay board through the Pi's GPIO header.
type RPIOBackend struct {
	pins       map[int]rpio.Pin
	activeHigh bool
}

// NewRPIO maps relay ids to BCM pin numbers and configures each pin as
// an inactive output.
func NewRPIO(pins map[int]int, activeHigh bool) (*RPIOBackend, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO memory: %w", err)
	}
	b := &RPIOBackend{
		pins:       make(map[int]rpio.Pin, len(pins)),
		activeHigh: activeHigh,
	}
	for id, num := range pins {
		p := rpio.Pin(num)
		p.Mode(rpio.Output)
		b.pins[id] = p
		b.Set(id, false)
	}
	return b, nil
}

func (b *RPIOBackend) Set(id int, on bool) {
	p := b.pins[id]
	if on == b.activeHigh {
		p.High()
	} else {
		p.Low()
	}
}

func (b *RPIOBackend) Status(id int) bool {
	return (b.pins[id].Read() == rpio.High) == b.activeHigh
}

func (b *RPIOBackend) Close() error {
	return rpio.Close()
}
