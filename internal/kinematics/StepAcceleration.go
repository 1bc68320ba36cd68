package kinematics

import "math"

// StepModelName identifies the step model in config files and logs.
const StepModelName = "step"

// StepAcceleration implements MotionModel with a fixed speed increment applied
// every Interval seconds. With probability BurstChance the driver overshoots:
// the increment is scaled by BurstFactor and the class ceiling is lifted by
// the same factor.
type StepAcceleration struct {
	Step        float64 `json:"step"`         // px/s added per update
	Interval    float64 `json:"interval"`     // seconds between updates
	BurstChance float64 `json:"burst_chance"` // probability in [0,1)
	BurstFactor float64 `json:"burst_factor"` // multiplier for a burst
}

// DefaultStep is the profile every vehicle class uses unless overridden.
var DefaultStep = StepAcceleration{Step: 5, Interval: 5, BurstChance: 0.05, BurstFactor: 1.2}

func (s StepAcceleration) UpdateInterval() float64 { return s.Interval }

func (s StepAcceleration) Accelerate(v, vMax float64, r Rand) float64 {
	next := v + s.Step
	if r != nil && r.Float64() < s.BurstChance {
		return math.Min(next*s.BurstFactor, vMax*s.BurstFactor)
	}
	return math.Min(next, vMax)
}
