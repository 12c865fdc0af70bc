package sensor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolhouse/poolhouse-controller/internal/model"
)

func scripted(results ...ReadResult) *FakeDriver {
	return &FakeDriver{Script: results}
}

func noSleep(t *testing.T, r *Reader) *int {
	t.Helper()
	var slept int
	r.sleep = func(d time.Duration) {
		assert.Equal(t, FinalRetryBackoff, d)
		slept++
	}
	return &slept
}

func TestSampleRetriesThenSucceeds(t *testing.T) {
	bad := ReadResult{Err: errors.New("crc mismatch")}
	good := ReadResult{Sample: Sample{Temperature: 25.0}}

	driver := scripted(bad, bad, good)
	r := NewReader(driver, model.UnitCelsius)
	slept := noSleep(t, r)

	s, err := r.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 25.0, s.Temperature, 0.001)
	assert.Equal(t, 3, driver.Reads)
	assert.Equal(t, 0, *slept, "backoff only precedes the final attempt")
}

func TestSampleBacksOffBeforeFinalAttempt(t *testing.T) {
	bad := ReadResult{Err: errors.New("timeout")}
	good := ReadResult{Sample: Sample{Temperature: 20.0}}

	driver := scripted(bad, bad, bad, good)
	r := NewReader(driver, model.UnitCelsius)
	slept := noSleep(t, r)

	_, err := r.Sample()
	require.NoError(t, err)
	assert.Equal(t, 4, driver.Reads)
	assert.Equal(t, 1, *slept)
}

func TestSampleFailsAfterMaxAttempts(t *testing.T) {
	cause := errors.New("no presence pulse")
	driver := scripted(ReadResult{Err: cause})
	r := NewReader(driver, model.UnitCelsius)
	slept := noSleep(t, r)

	_, err := r.Sample()
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, MaxAttempts, driver.Reads)
	assert.Equal(t, 1, *slept)
}

func TestSampleConvertsToFahrenheit(t *testing.T) {
	driver := scripted(ReadResult{Sample: Sample{Temperature: 25.0}})
	r := NewReader(driver, model.UnitFahrenheit)

	s, err := r.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 77.0, s.Temperature, 0.001)
}

func TestSampleAppliesCalibration(t *testing.T) {
	driver := scripted(ReadResult{Sample: Sample{Temperature: 20.0}})
	r := NewReader(driver, model.UnitCelsius)
	r.SetCalibration(-1.5)

	s, err := r.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 18.5, s.Temperature, 0.001)
}

func TestImplausibleAmbientSampleRejected(t *testing.T) {
	driver := scripted(ReadResult{Sample: Sample{Temperature: -3.0, Humidity: 40, HasHumidity: true}})
	r := NewReader(driver, model.UnitCelsius)
	r.RejectImplausible = true

	_, err := r.Sample()
	assert.ErrorIs(t, err, ErrImplausible)
	assert.Equal(t, 1, driver.Reads, "implausible samples must not burn retries")
}

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "w1_slave")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestOneWireParsesReading(t *testing.T) {
	path := writeFixture(t, "4b 01 4b 46 7f ff 05 10 d8 : crc=d8 YES\n4b 01 4b 46 7f ff 05 10 d8 t=20687\n")
	s, err := NewOneWireAt(path).Read()
	require.NoError(t, err)
	assert.InDelta(t, 20.687, s.Temperature, 0.001)
}

func TestOneWireRejectsBadCRC(t *testing.T) {
	path := writeFixture(t, "4b 01 4b 46 7f ff 05 10 d8 : crc=d8 NO\n4b 01 4b 46 7f ff 05 10 d8 t=20687\n")
	_, err := NewOneWireAt(path).Read()
	assert.Error(t, err)
}

func TestOneWireRejectsMalformedData(t *testing.T) {
	for _, content := range []string{"", "garbage\n", "a : crc=d8 YES\nno temperature here\n"} {
		path := writeFixture(t, content)
		_, err := NewOneWireAt(path).Read()
		assert.Error(t, err)
	}
}

func TestAmbientCRC8(t *testing.T) {
	// Reference value from the Sensirion datasheet: 0xBEEF -> 0x92.
	assert.Equal(t, byte(0x92), crc8([]byte{0xBE, 0xEF}))
}
