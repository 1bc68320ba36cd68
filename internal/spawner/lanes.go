package spawner

import "github.com/cxd309/intersection-sim/internal/vehicle"

// DefaultLaneCapacity is the most vehicles a single lane may hold.
const DefaultLaneCapacity = 10

// Rand is the randomness the spawner draws on. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// LaneRegistry counts live vehicles per (direction, lane) and enforces a
// hard capacity on each lane.
type LaneRegistry struct {
	capacity int
	counts   [vehicle.NumDirections][2]int
	rng      Rand
}

// NewLaneRegistry returns an empty registry. r breaks ties in
// LeastOccupiedLane.
func NewLaneRegistry(capacity int, r Rand) *LaneRegistry {
	if capacity <= 0 {
		capacity = DefaultLaneCapacity
	}
	return &LaneRegistry{capacity: capacity, rng: r}
}

// Capacity returns the per-lane limit.
func (l *LaneRegistry) Capacity() int { return l.capacity }

// IsAvailable reports whether lane of dir can take one more vehicle.
func (l *LaneRegistry) IsAvailable(dir vehicle.Direction, lane vehicle.Lane) bool {
	return l.counts[dir][lane.Index()] < l.capacity
}

// Increment records an admission. It refuses, and returns false, when the
// lane is already full.
func (l *LaneRegistry) Increment(dir vehicle.Direction, lane vehicle.Lane) bool {
	if !l.IsAvailable(dir, lane) {
		return false
	}
	l.counts[dir][lane.Index()]++
	return true
}

// Decrement records a departure. Counts never drop below zero.
func (l *LaneRegistry) Decrement(dir vehicle.Direction, lane vehicle.Lane) {
	if l.counts[dir][lane.Index()] > 0 {
		l.counts[dir][lane.Index()]--
	}
}

// Count returns the occupancy of lane in dir.
func (l *LaneRegistry) Count(dir vehicle.Direction, lane vehicle.Lane) int {
	return l.counts[dir][lane.Index()]
}

// LeastOccupiedLane returns the emptier lane of dir, choosing at random on a tie.
func (l *LaneRegistry) LeastOccupiedLane(dir vehicle.Direction) vehicle.Lane {
	c1, c2 := l.counts[dir][0], l.counts[dir][1]
	switch {
	case c1 < c2:
		return vehicle.Lane1
	case c2 < c1:
		return vehicle.Lane2
	}
	if l.rng != nil && l.rng.Intn(2) == 1 {
		return vehicle.Lane2
	}
	return vehicle.Lane1
}
