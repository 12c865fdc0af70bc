package command_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolhouse/poolhouse-controller/internal/command"
	"github.com/poolhouse/poolhouse-controller/internal/relay"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParseTimedOn(t *testing.T) {
	cmd, err := command.Parse("34on5")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, cmd.Relays)
	assert.Equal(t, command.ActionOn, cmd.Action)
	assert.Equal(t, 5*time.Minute, cmd.Duration)
}

func TestParseUntimedActions(t *testing.T) {
	tests := []struct {
		raw    string
		relays []int
		action command.Action
	}{
		{"3on", []int{3}, command.ActionOn},
		{"4off", []int{4}, command.ActionOff},
		{"34toggle", []int{3, 4}, command.ActionToggle},
	}
	for _, tt := range tests {
		cmd, err := command.Parse(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.relays, cmd.Relays, tt.raw)
		assert.Equal(t, tt.action, cmd.Action, tt.raw)
		assert.Zero(t, cmd.Duration, tt.raw)
	}
}

func TestParseMomentaryGetsFixedPulse(t *testing.T) {
	cmd, err := command.Parse("3momentary")
	require.NoError(t, err)
	assert.Equal(t, command.MomentaryPulse, cmd.Duration)
}

func TestParseDropsReservedRelaysSilently(t *testing.T) {
	cmd, err := command.Parse("134on")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, cmd.Relays)
}

func TestParseDeduplicatesRelays(t *testing.T) {
	cmd, err := command.Parse("3343toggle")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, cmd.Relays)
}

func TestParseRejectsAllReservedCommand(t *testing.T) {
	for _, raw := range []string{"1on", "2off", "12toggle"} {
		_, err := command.Parse(raw)
		assert.ErrorIs(t, err, command.ErrReservedRelay, raw)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"on",
		"3frob",
		"5on",
		"30off",
		"abc",
		"3 on",
		"34off5",
		"34toggle2",
		"3on0",
	} {
		_, err := command.Parse(raw)
		assert.ErrorIs(t, err, command.ErrBadCommand, raw)
	}
}

func TestParseNormalizesInput(t *testing.T) {
	cmd, err := command.Parse("  34ON5 ")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, cmd.Relays)
	assert.Equal(t, 5*time.Minute, cmd.Duration)
}

func TestApplyTimedOnArmsAutoOff(t *testing.T) {
	gw := relay.NewGateway(relay.NewFakeBackend())
	cmd, err := command.Parse("34on5")
	require.NoError(t, err)

	require.NoError(t, command.Apply(cmd, gw, base))
	for _, id := range []int{3, 4} {
		on, _ := gw.Status(id)
		assert.True(t, on, "relay %d", id)
	}

	gw.Sweep(base.Add(5 * time.Minute))
	for _, id := range []int{3, 4} {
		on, _ := gw.Status(id)
		assert.False(t, on, "relay %d", id)
	}
}

func TestApplyMomentaryPulse(t *testing.T) {
	gw := relay.NewGateway(relay.NewFakeBackend())
	cmd, err := command.Parse("3momentary")
	require.NoError(t, err)

	require.NoError(t, command.Apply(cmd, gw, base))
	on, _ := gw.Status(3)
	assert.True(t, on)

	gw.Sweep(base.Add(command.MomentaryPulse))
	on, _ = gw.Status(3)
	assert.False(t, on)
}

func TestApplyToggle(t *testing.T) {
	gw := relay.NewGateway(relay.NewFakeBackend())
	require.NoError(t, gw.Set(4, true))

	cmd, err := command.Parse("4toggle")
	require.NoError(t, err)
	require.NoError(t, command.Apply(cmd, gw, base))

	on, _ := gw.Status(4)
	assert.False(t, on)
}
