// Package kinematics defines the MotionModel interface for how vehicles gain
// speed over time, along with built-in implementations and the car-following
// rule shared by every approach.
//
// Adding a new acceleration profile requires only implementing MotionModel and
// passing it to the engine; the worker loops never need to change.
package kinematics

// Rand is the randomness a motion model draws on. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// MotionModel is the contract every acceleration profile must satisfy.
// Speeds are in pixels per second and time in seconds.
type MotionModel interface {
	// UpdateInterval returns the simulated seconds between speed updates.
	UpdateInterval() float64

	// Accelerate returns the speed after one periodic update from v for a
	// vehicle whose class ceiling is vMax. The result may exceed vMax when
	// the model allows bursts.
	Accelerate(v, vMax float64, r Rand) float64
}

// FollowingSpeed returns the speed a vehicle may hold given a leader gap
// pixels ahead in the same lane. Leaders inside the safe window cap the
// follower at half the leader's speed; leaders outside it, or
// behind, impose nothing and ceiling is returned unchanged.
func FollowingSpeed(ceiling, gap, safeDistance, leaderSpeed float64) float64 {
	if gap <= 0 || gap >= safeDistance {
		return ceiling
	}
	if limit := leaderSpeed * 0.5; limit < ceiling {
		return limit
	}
	return ceiling
}
