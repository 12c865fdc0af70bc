package relay_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolhouse/poolhouse-controller/internal/relay"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newGateway() (*relay.Gateway, *relay.FakeBackend) {
	backend := relay.NewFakeBackend()
	return relay.NewGateway(backend), backend
}

func TestSetAndStatus(t *testing.T) {
	gw, _ := newGateway()

	require.NoError(t, gw.Set(3, true))
	on, err := gw.Status(3)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, gw.Set(3, false))
	on, err = gw.Status(3)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestToggleFlipsState(t *testing.T) {
	gw, _ := newGateway()

	require.NoError(t, gw.Toggle(4))
	on, _ := gw.Status(4)
	assert.True(t, on)

	require.NoError(t, gw.Toggle(4))
	on, _ = gw.Status(4)
	assert.False(t, on)
}

func TestUnknownRelayRejected(t *testing.T) {
	gw, _ := newGateway()

	assert.ErrorIs(t, gw.Set(0, true), relay.ErrUnknownRelay)
	assert.ErrorIs(t, gw.Set(5, true), relay.ErrUnknownRelay)
	assert.ErrorIs(t, gw.Toggle(9), relay.ErrUnknownRelay)
	_, err := gw.Status(-1)
	assert.ErrorIs(t, err, relay.ErrUnknownRelay)
}

func TestAllOffClearsEveryRelay(t *testing.T) {
	gw, _ := newGateway()
	require.NoError(t, gw.Set(1, true))
	require.NoError(t, gw.Set(4, true))

	gw.AllOff()

	for id, on := range gw.Snapshot() {
		assert.False(t, on, "relay %d", id)
	}
}

func TestSetForRejectsLoopRelays(t *testing.T) {
	gw, _ := newGateway()

	assert.ErrorIs(t, gw.SetFor(1, time.Minute, base), relay.ErrReservedRelay)
	assert.ErrorIs(t, gw.SetFor(2, time.Minute, base), relay.ErrReservedRelay)
}

func TestSweepHonorsDeadline(t *testing.T) {
	gw, _ := newGateway()
	require.NoError(t, gw.SetFor(3, 5*time.Minute, base))

	gw.Sweep(base.Add(5*time.Minute - time.Second))
	on, _ := gw.Status(3)
	assert.True(t, on, "deadline has not elapsed yet")

	gw.Sweep(base.Add(5 * time.Minute))
	on, _ = gw.Status(3)
	assert.False(t, on)
}

func TestSweepIsIdempotent(t *testing.T) {
	gw, backend := newGateway()
	require.NoError(t, gw.SetFor(4, time.Minute, base))

	gw.Sweep(base.Add(2 * time.Minute))
	gw.Sweep(base.Add(3 * time.Minute))

	assert.Equal(t, 1, backend.SetCount(4, false))
}

func TestDirectSetDisarmsDeadline(t *testing.T) {
	gw, _ := newGateway()
	require.NoError(t, gw.SetFor(3, time.Minute, base))
	require.NoError(t, gw.Set(3, true))

	gw.Sweep(base.Add(time.Hour))
	on, _ := gw.Status(3)
	assert.True(t, on, "manual set cancels the pending auto-off")
}

func TestIsAux(t *testing.T) {
	assert.False(t, relay.IsAux(1))
	assert.False(t, relay.IsAux(2))
	assert.True(t, relay.IsAux(3))
	assert.True(t, relay.IsAux(4))
	assert.False(t, relay.IsAux(5))
}
