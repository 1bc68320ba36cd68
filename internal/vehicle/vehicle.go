// Package vehicle defines the road agents of the intersection simulation: their
// class, approach geometry, and kinematic state.
package vehicle

import (
	"fmt"

	"github.com/cxd309/intersection-sim/internal/kinematics"
)

// Class is the vehicle category, which fixes speed ceiling and priority.
type Class string

const (
	ClassLight     Class = "Light"
	ClassHeavy     Class = "Heavy"
	ClassEmergency Class = "Emergency"
)

// Speed thresholds in pixels per second.
const (
	LightMaxSpeed     = 60.0
	HeavyMaxSpeed     = 40.0
	EmergencyMaxSpeed = 80.0
)

// MaxSpeed returns the class ceiling used for acceleration and violations.
func (c Class) MaxSpeed() float64 {
	switch c {
	case ClassHeavy:
		return HeavyMaxSpeed
	case ClassEmergency:
		return EmergencyMaxSpeed
	default:
		return LightMaxSpeed
	}
}

// Priority orders pending admission requests; higher is served first.
func (c Class) Priority() int {
	switch c {
	case ClassEmergency:
		return 3
	case ClassHeavy:
		return 2
	default:
		return 1
	}
}

// Length is the footprint of the class along the direction of travel.
func (c Class) Length() float64 {
	switch c {
	case ClassHeavy:
		return 80
	case ClassEmergency:
		return 50
	default:
		return 40
	}
}

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	return c == ClassLight || c == ClassHeavy || c == ClassEmergency
}

// Rand is the randomness needed to draw initial speeds and speed bursts.
// *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// InitialSpeed draws the entry speed for a new vehicle of class c:
// Light 40–60, Heavy 20–40, Emergency 60–80.
func InitialSpeed(c Class, r Rand) float64 {
	base := 40
	switch c {
	case ClassHeavy:
		base = 20
	case ClassEmergency:
		base = 60
	}
	return float64(base + r.Intn(21))
}

// Vehicle is a single simulated road agent. It is owned by the worker of its
// direction; the control worker only reads its kinematic state and sets
// HasChallan, always under the engine lock.
type Vehicle struct {
	ID           string
	Class        Class
	Direction    Direction
	Lane         Lane
	CurrentSpeed float64
	MaxSpeed     float64
	Position     float64 // progress from the spawn point, px
	HasChallan   bool

	speedTimer float64
}

// New creates a vehicle at the spawn point of dir in lane.
func New(id string, class Class, dir Direction, lane Lane, speed float64) *Vehicle {
	return &Vehicle{
		ID:           id,
		Class:        class,
		Direction:    dir,
		Lane:         lane,
		CurrentSpeed: speed,
		MaxSpeed:     class.MaxSpeed(),
	}
}

// FormatID builds the plate-style identifier used in challan records.
func FormatID(class Class, n uint64) string {
	return fmt.Sprintf("%s%d", class, n)
}

func (v *Vehicle) IsHeavy() bool     { return v.Class == ClassHeavy }
func (v *Vehicle) IsEmergency() bool { return v.Class == ClassEmergency }

// Violating reports whether the current speed breaks the class limit.
// Emergency vehicles are exempt from the general limit.
func (v *Vehicle) Violating() bool {
	return (v.IsHeavy() && v.CurrentSpeed > HeavyMaxSpeed) ||
		(!v.IsEmergency() && v.CurrentSpeed > LightMaxSpeed)
}

// SafeDistance is the car-following window ahead of the vehicle. Heavy
// vehicles keep a 25% shorter window.
func (v *Vehicle) SafeDistance() float64 {
	d := v.Class.Length() * 1.5
	if v.IsHeavy() {
		d *= 0.75
	}
	return d
}

// AtStopLine reports whether the vehicle is waiting in the zone before the box.
func (v *Vehicle) AtStopLine() bool {
	return v.Direction.Approach().AtStopLine(v.Position)
}

// Exited reports whether the vehicle has left the simulated area.
func (v *Vehicle) Exited() bool {
	return v.Direction.Approach().Exited(v.Position)
}

// Advance applies one tick of dt seconds. Every model.UpdateInterval seconds
// the vehicle gains speed unless it is held at a red light. A held vehicle
// stops in place; everything else moves speed*dt along its approach. On red,
// a non-emergency vehicle whose step would cross the stop line halts on it.
// Advance reports whether the vehicle moved.
func (v *Vehicle) Advance(dt float64, green bool, model kinematics.MotionModel, r kinematics.Rand) bool {
	mustStop := !green && !v.IsEmergency()
	held := mustStop && v.AtStopLine()

	v.speedTimer += dt
	if v.speedTimer >= model.UpdateInterval() {
		v.speedTimer = 0
		if !held {
			v.CurrentSpeed = model.Accelerate(v.CurrentSpeed, v.MaxSpeed, r)
		}
	}

	if held {
		v.CurrentSpeed = 0
		return false
	}
	next := v.Position + v.CurrentSpeed*dt
	if stop := v.Direction.Approach().StopLine; mustStop && v.Position <= stop && next > stop {
		v.Position = stop
		v.CurrentSpeed = 0
		return true
	}
	v.Position = next
	return true
}

// Snapshot is a point-in-time, read-only copy of a vehicle for presentation.
type Snapshot struct {
	ID         string     `json:"id"`
	Class      Class      `json:"class"`
	Direction  Direction  `json:"direction"`
	Lane       Lane       `json:"lane"`
	Speed      float64    `json:"speed"`
	Position   float64    `json:"position"`
	Point      Coordinate `json:"point"`
	HasChallan bool       `json:"has_challan"`
}

// Snapshot returns a point-in-time copy of the vehicle state.
func (v *Vehicle) Snapshot() Snapshot {
	return Snapshot{
		ID:         v.ID,
		Class:      v.Class,
		Direction:  v.Direction,
		Lane:       v.Lane,
		Speed:      v.CurrentSpeed,
		Position:   v.Position,
		Point:      v.Direction.Approach().Point(v.Lane, v.Position),
		HasChallan: v.HasChallan,
	}
}
