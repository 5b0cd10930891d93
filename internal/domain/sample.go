package domain

import "time"

// PriorityClass orders samples for buffer admission and dequeue. Lower
// numeric value means higher priority; ClassCritical preempts everything.
type PriorityClass uint8

const (
	ClassCritical PriorityClass = iota // brake failure, engine-critical events
	ClassHigh                          // speed, throttle, brake
	ClassMedium                        // tyres, fuel, energy systems
	ClassLow                           // routine cruise data

	NumClasses = 4
)

func (c PriorityClass) Valid() bool { return c < NumClasses }

func (c PriorityClass) String() string {
	switch c {
	case ClassCritical:
		return "critical"
	case ClassHigh:
		return "high"
	case ClassMedium:
		return "medium"
	case ClassLow:
		return "low"
	default:
		return "unknown"
	}
}

// Sample is one decoded telemetry reading for one car at one instant.
// It is a fixed-size value type so ring slots can hold it without any
// per-sample heap allocation; once decoded it is never mutated.
type Sample struct {
	CarID    uint8
	Seq      uint32
	Captured time.Time // source capture time, not arrival time
	Priority PriorityClass

	SpeedKmh  uint16
	RPM       uint16
	Gear      int8 // -1 reverse, 0 neutral, 1..8
	Throttle  float32
	Brake     float32
	Steering  float32 // -1.0 .. 1.0
	DRSActive bool

	PosX float32
	PosY float32
	PosZ float32

	WaterTempC     int16
	OilPressureBar float32
	FuelFlowKgH    float32
	TyreTempC      [4]int16 // FL, FR, RL, RR
}
