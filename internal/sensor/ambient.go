package sensor

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultAmbientAddr is the SHT3x default I2C address.
const DefaultAmbientAddr uint16 = 0x44

// Ambient reads an SHT3x-class temperature/humidity sensor over I2C.
type Ambient struct {
	bus i2c.BusCloser
	dev i2c.Dev
}

func NewAmbient(busName string, addr uint16) (*Ambient, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}
	return &Ambient{
		bus: bus,
		dev: i2c.Dev{Bus: bus, Addr: addr},
	}, nil
}

// Read triggers a high-repeatability single-shot measurement and
// validates both CRC bytes before converting.
func (a *Ambient) Read() (Sample, error) {
	if err := a.dev.Tx([]byte{0x24, 0x00}, nil); err != nil {
		return Sample{}, fmt.Errorf("measurement command failed: %w", err)
	}
	time.Sleep(16 * time.Millisecond)

	buf := make([]byte, 6)
	if err := a.dev.Tx(nil, buf); err != nil {
		return Sample{}, fmt.Errorf("measurement read failed: %w", err)
	}
	if crc8(buf[0:2]) != buf[2] {
		return Sample{}, fmt.Errorf("temperature CRC mismatch: % x", buf[0:3])
	}
	if crc8(buf[3:5]) != buf[5] {
		return Sample{}, fmt.Errorf("humidity CRC mismatch: % x", buf[3:6])
	}

	rawTemp := float64(uint16(buf[0])<<8 | uint16(buf[1]))
	rawHum := float64(uint16(buf[3])<<8 | uint16(buf[4]))
	return Sample{
		Temperature: -45.0 + 175.0*rawTemp/65535.0,
		Humidity:    100.0 * rawHum / 65535.0,
		HasHumidity: true,
	}, nil
}

func (a *Ambient) Close() error {
	return a.bus.Close()
}

// crc8 is the Sensirion checksum: polynomial 0x31, init 0xFF.
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
