// Package command parses manual relay command strings of the form
// <relayDigits><on|off|toggle|momentary>[<minutes>], e.g. "34on5"
// turns relays 3 and 4 on for five minutes.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolhouse/poolhouse-controller/internal/relay"
)

var (
	ErrBadCommand = errors.New("malformed relay command")

	// ErrReservedRelay means the command named only loop-owned relays.
	ErrReservedRelay = errors.New("command addresses only reserved relays")
)

// MomentaryPulse is the fixed width of a "momentary" actuation.
const MomentaryPulse = 300 * time.Millisecond

type Action string

const (
	ActionOn        Action = "on"
	ActionOff       Action = "off"
	ActionToggle    Action = "toggle"
	ActionMomentary Action = "momentary"
)

type Command struct {
	Relays   []int
	Action   Action
	Duration time.Duration // zero means untimed
}

var grammar = regexp.MustCompile(`^([0-9]+)(on|off|toggle|momentary)([0-9]*)$`)

// Parse validates the grammar and the relay ownership rule: digits must
// be 1-4, and relays 1-2 are dropped silently because the control loops
// own them. A command left with no relays is rejected.
func Parse(raw string) (*Command, error) {
	m := grammar.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return nil, fmt.Errorf("%q: %w", raw, ErrBadCommand)
	}

	var relays []int
	seen := map[int]bool{}
	for _, c := range m[1] {
		id := int(c - '0')
		if id < 1 || id > 4 {
			return nil, fmt.Errorf("%q: relay digit %d: %w", raw, id, ErrBadCommand)
		}
		if !relay.IsAux(id) || seen[id] {
			continue
		}
		seen[id] = true
		relays = append(relays, id)
	}
	if len(relays) == 0 {
		return nil, fmt.Errorf("%q: %w", raw, ErrReservedRelay)
	}

	cmd := &Command{Relays: relays, Action: Action(m[2])}

	if m[3] != "" {
		if cmd.Action != ActionOn {
			return nil, fmt.Errorf("%q: duration only valid with 'on': %w", raw, ErrBadCommand)
		}
		minutes, err := strconv.Atoi(m[3])
		if err != nil || minutes < 1 {
			return nil, fmt.Errorf("%q: bad duration: %w", raw, ErrBadCommand)
		}
		cmd.Duration = time.Duration(minutes) * time.Minute
	}
	if cmd.Action == ActionMomentary {
		cmd.Duration = MomentaryPulse
	}

	return cmd, nil
}

// Apply actuates a parsed command against the relay gateway. Timed and
// momentary actuations arm auto-off deadlines cleared by the sweep.
func Apply(cmd *Command, gw *relay.Gateway, now time.Time) error {
	for _, id := range cmd.Relays {
		var err error
		switch cmd.Action {
		case ActionOn:
			if cmd.Duration > 0 {
				err = gw.SetFor(id, cmd.Duration, now)
			} else {
				err = gw.Set(id, true)
			}
		case ActionOff:
			err = gw.Set(id, false)
		case ActionToggle:
			err = gw.Toggle(id)
		case ActionMomentary:
			err = gw.SetFor(id, cmd.Duration, now)
		}
		if err != nil {
			return fmt.Errorf("relay %d: %w", id, err)
		}
		log.Info().Int("relay", id).Str("action", string(cmd.Action)).Dur("duration", cmd.Duration).Msg("Manual relay command applied")
	}
	return nil
}
