// Package settings holds the versioned persisted record of per-loop
// setpoints, calibration offsets and last-resume-state.
package settings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/poolhouse/poolhouse-controller/internal/model"
)

// SchemaVersion tags the stored record. Blank or stale storage fails
// the tag check and the compiled-in defaults are kept.
const SchemaVersion byte = 3

const NumLoops = 2

// Fixed-offset single blob: version byte, target float64 per loop,
// calibration float64 per loop, resume byte per loop.
const recordSize = 1 + NumLoops*8 + NumLoops*8 + NumLoops

// ErrNotFound means storage held no record with the current schema
// version. Callers keep their defaults; this is not a fault.
var ErrNotFound = errors.New("no valid settings record")

type LoopSettings struct {
	Target      float64
	Calibration float64
	Resume      model.ResumeState
}

type Record struct {
	Loops [NumLoops]LoopSettings
}

func Defaults() *Record {
	return &Record{
		Loops: [NumLoops]LoopSettings{
			{Target: 78.0, Resume: model.ResumeOff},  // pool
			{Target: 110.0, Resume: model.ResumeOff}, // sauna
		},
	}
}

func (r *Record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, recordSize)
	buf[0] = SchemaVersion
	off := 1
	for i := 0; i < NumLoops; i++ {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(r.Loops[i].Target))
		off += 8
	}
	for i := 0; i < NumLoops; i++ {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(r.Loops[i].Calibration))
		off += 8
	}
	for i := 0; i < NumLoops; i++ {
		buf[off] = byte(r.Loops[i].Resume)
		off++
	}
	return buf, nil
}

func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != recordSize {
		return fmt.Errorf("settings blob is %d bytes, want %d: %w", len(data), recordSize, ErrNotFound)
	}
	if data[0] != SchemaVersion {
		return fmt.Errorf("settings version tag %d, want %d: %w", data[0], SchemaVersion, ErrNotFound)
	}
	off := 1
	for i := 0; i < NumLoops; i++ {
		r.Loops[i].Target = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
		off += 8
	}
	for i := 0; i < NumLoops; i++ {
		r.Loops[i].Calibration = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
		off += 8
	}
	for i := 0; i < NumLoops; i++ {
		r.Loops[i].Resume = model.ResumeState(data[off])
		off++
	}
	return nil
}
