package model

// LoopID names one of the two controlled heating loops.
type LoopID string

const (
	LoopPool  LoopID = "pool"
	LoopSauna LoopID = "sauna"
)

// LoopState is the control loop lifecycle state.
type LoopState string

const (
	StateInit LoopState = "init"
	StateOff  LoopState = "off"
	StateIdle LoopState = "idle"
	StateOn   LoopState = "on"
)

// ResumeState is the coarse persisted on/off memory consulted after a
// reboot. On is deliberately folded into Idle: the loop never resumes
// straight into On, it re-earns On through a fresh temperature check.
type ResumeState byte

const (
	ResumeOff  ResumeState = 0
	ResumeIdle ResumeState = 1
)

func (r ResumeState) String() string {
	if r == ResumeIdle {
		return "idle"
	}
	return "off"
}

type Unit string

const (
	UnitCelsius    Unit = "C"
	UnitFahrenheit Unit = "F"
)

const (
	// Relay ownership: 1 and 2 belong to the pool and sauna loops,
	// 3 and 4 are free for manual or timed control.
	NumRelays     = 4
	PoolRelay     = 1
	SaunaRelay    = 2
	FirstAuxRelay = 3

	TargetMin = 0.0
	TargetMax = 125.0

	CalibrationMin = -50.0
	CalibrationMax = 50.0

	// Symmetric dead-band around the target that prevents chatter at
	// the threshold.
	HysteresisMargin = 0.25
)

// InvalidTemp marks "no valid sample yet obtained" on status surfaces.
// The control loops track validity with an explicit flag; this sentinel
// only exists for wire payloads that need a number.
const InvalidTemp = -999.0
