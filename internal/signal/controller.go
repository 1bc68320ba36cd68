// Package signal implements the fixed-time traffic light controller: a
// round-robin over the four approaches in which exactly one approach holds
// green or yellow while the others are red. The controller also scans live
// vehicles for speeding violations.
package signal

import (
	"github.com/cxd309/intersection-sim/internal/challan"
	"github.com/cxd309/intersection-sim/internal/vehicle"
)

// Phase is the light shown to one approach.
type Phase string

const (
	PhaseGreen  Phase = "GREEN"
	PhaseYellow Phase = "YELLOW"
	PhaseRed    Phase = "RED"
)

// Phase durations in seconds.
const (
	GreenDuration  = 10.0
	YellowDuration = 2.0
	CycleDuration  = vehicle.NumDirections * (GreenDuration + YellowDuration)
)

// State is the controller's state: which approach is active, whether it is in
// its green or yellow phase, and the seconds spent in that phase.
type State struct {
	CurrentGreen vehicle.Direction `json:"current_green"`
	Phase        Phase             `json:"phase"`
	Timer        float64           `json:"timer"`
}

// Controller is the traffic light state machine. It is not safe for
// concurrent use; the engine guards it with its lock.
type Controller struct {
	state  State
	green  float64
	yellow float64
	repeat bool
}

// Option customises a Controller.
type Option func(*Controller)

// WithDurations overrides the green and yellow phase lengths.
func WithDurations(green, yellow float64) Option {
	return func(c *Controller) {
		if green > 0 {
			c.green = green
		}
		if yellow > 0 {
			c.yellow = yellow
		}
	}
}

// WithRepeatChallans makes Scan report a violating vehicle on every scan
// rather than only on its first detection.
func WithRepeatChallans(repeat bool) Option {
	return func(c *Controller) { c.repeat = repeat }
}

// NewController returns a controller showing green to North.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		state:  State{CurrentGreen: vehicle.North, Phase: PhaseGreen},
		green:  GreenDuration,
		yellow: YellowDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update advances the phase timer by dt seconds and applies every transition
// that falls due. Time beyond a transition carries into the next phase. It
// reports whether the active approach or phase changed.
func (c *Controller) Update(dt float64) bool {
	if dt <= 0 {
		return false
	}
	changed := false
	c.state.Timer += dt
	for {
		switch {
		case c.state.Phase == PhaseYellow && c.state.Timer >= c.yellow:
			c.state.Timer -= c.yellow
			c.state.CurrentGreen = c.state.CurrentGreen.Next()
			c.state.Phase = PhaseGreen
		case c.state.Phase == PhaseGreen && c.state.Timer >= c.green:
			c.state.Timer -= c.green
			c.state.Phase = PhaseYellow
		default:
			return changed
		}
		changed = true
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State { return c.state }

// IsGreen reports whether dir has right-of-way. Yellow does not count.
func (c *Controller) IsGreen(dir vehicle.Direction) bool {
	return dir == c.state.CurrentGreen && c.state.Phase == PhaseGreen
}

// PhaseOf returns the light currently shown to dir.
func (c *Controller) PhaseOf(dir vehicle.Direction) Phase {
	if dir != c.state.CurrentGreen {
		return PhaseRed
	}
	return c.state.Phase
}

// Lights returns the light shown to every approach, indexed by direction.
func (c *Controller) Lights() [vehicle.NumDirections]Phase {
	var out [vehicle.NumDirections]Phase
	for _, d := range vehicle.Directions {
		out[d] = c.PhaseOf(d)
	}
	return out
}

// Scan checks every live vehicle for a speeding violation, marks violators
// with HasChallan, and returns one event per reported violation. A vehicle
// already holding a challan is reported again only in repeat mode.
func (c *Controller) Scan(lists [vehicle.NumDirections][]*vehicle.Vehicle) []challan.Event {
	var events []challan.Event
	for _, list := range lists {
		for _, v := range list {
			if !v.Violating() {
				continue
			}
			already := v.HasChallan
			v.HasChallan = true
			if already && !c.repeat {
				continue
			}
			events = append(events, challan.NewEvent(v.ID, v.CurrentSpeed, v.IsHeavy()))
		}
	}
	return events
}
