package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const onewireRoot = "/sys/bus/w1/devices"

// OneWire reads a DS18B20 probe through the kernel w1 sysfs interface.
type OneWire struct {
	file string
}

func NewOneWire(busID string) *OneWire {
	return &OneWire{file: filepath.Join(onewireRoot, busID, "w1_slave")}
}

// NewOneWireAt is used by tests to point the driver at a fixture file.
func NewOneWireAt(file string) *OneWire {
	return &OneWire{file: file}
}

// Read parses the two-line w1_slave format:
//
//	4b 01 4b 46 7f ff 05 10 d8 : crc=d8 YES
//	4b 01 4b 46 7f ff 05 10 d8 t=20687
func (o *OneWire) Read() (Sample, error) {
	data, err := os.ReadFile(o.file)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read sensor file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) < 2 {
		return Sample{}, fmt.Errorf("sensor data malformed: %q", string(data))
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return Sample{}, fmt.Errorf("sensor CRC check failed: %q", lines[0])
	}

	parts := strings.Split(lines[1], "t=")
	if len(parts) != 2 {
		return Sample{}, fmt.Errorf("temperature field missing: %q", lines[1])
	}
	milliC, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Sample{}, fmt.Errorf("failed to parse temperature %q: %w", parts[1], err)
	}

	return Sample{Temperature: float64(milliC) / 1000.0}, nil
}
