// Package simclock keeps the simulated time of day. The clock runs faster than
// the simulation itself: every elapsed simulation second advances the time of
// day by Scale seconds.
package simclock

import (
	"errors"
	"fmt"
	"time"
)

const day = 24 * time.Hour

// DefaultScale makes one simulation second equal one simulated minute.
const DefaultScale = 60.0

// ErrInvalidTimeOfDay is returned for clock strings that are not HH:MM.
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// Window is an inclusive time-of-day range.
type Window struct {
	From time.Duration
	To   time.Duration
}

// Contains reports whether tod lies inside w, bounds included.
func (w Window) Contains(tod time.Duration) bool {
	return tod >= w.From && tod <= w.To
}

// PeakWindows are the rush hours during which heavy vehicles are turned away.
var PeakWindows = []Window{
	{From: 7 * time.Hour, To: 9*time.Hour + 30*time.Minute},
	{From: 16*time.Hour + 30*time.Minute, To: 20*time.Hour + 30*time.Minute},
}

// IsPeak reports whether tod falls inside any peak window.
func IsPeak(tod time.Duration) bool {
	for _, w := range PeakWindows {
		if w.Contains(tod) {
			return true
		}
	}
	return false
}

// Clock tracks elapsed simulation time and the derived time of day.
// It is not safe for concurrent use; the engine guards it with its lock.
type Clock struct {
	start   time.Duration
	scale   float64
	elapsed float64
}

// New returns a clock starting at the given time of day.
func New(startOfDay time.Duration, scale float64) *Clock {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Clock{start: normalize(startOfDay), scale: scale}
}

// Advance moves the clock forward by dt simulation seconds.
func (c *Clock) Advance(dt float64) {
	if dt > 0 {
		c.elapsed += dt
	}
}

// Elapsed returns the simulation seconds since the clock started.
func (c *Clock) Elapsed() float64 { return c.elapsed }

// TimeOfDay returns the simulated wall-clock time, wrapping at midnight.
func (c *Clock) TimeOfDay() time.Duration {
	offset := time.Duration(c.elapsed * c.scale * float64(time.Second))
	return normalize(c.start + offset)
}

// Peak reports whether the current time of day is inside a peak window.
func (c *Clock) Peak() bool { return IsPeak(c.TimeOfDay()) }

func normalize(d time.Duration) time.Duration {
	d %= day
	if d < 0 {
		d += day
	}
	return d
}

// ParseTimeOfDay parses an "HH:MM" or "HH:MM:SS" string.
func ParseTimeOfDay(s string) (time.Duration, error) {
	var h, m, sec int
	n, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	if n < 2 {
		if err == nil {
			err = fmt.Errorf("expected HH:MM")
		}
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidTimeOfDay, s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("%w %q: out of range", ErrInvalidTimeOfDay, s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// FormatTimeOfDay renders tod as HH:MM:SS.
func FormatTimeOfDay(tod time.Duration) string {
	tod = normalize(tod)
	h := tod / time.Hour
	m := (tod % time.Hour) / time.Minute
	s := (tod % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
