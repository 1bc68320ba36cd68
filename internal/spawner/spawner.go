// Package spawner decides when vehicles enter the simulation. It owns the
// lane occupancy registry and the pending-demand queues, and applies the
// per-direction timers, emergency probabilities, and peak-hour gating.
//
// The spawner is not safe for concurrent use; the engine calls it only while
// holding its lock.
package spawner

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/intersection-sim/internal/simclock"
	"github.com/cxd309/intersection-sim/internal/vehicle"
)

// Profile is the generation schedule of one approach.
type Profile struct {
	RegularInterval   float64 // seconds between light vehicles
	EmergencyInterval float64 // seconds between emergency draws
	EmergencyChance   float64 // probability a draw produces a vehicle
}

// DefaultProfiles are the schedules of the four approaches.
var DefaultProfiles = [vehicle.NumDirections]Profile{
	vehicle.North: {RegularInterval: 1.0, EmergencyInterval: 15, EmergencyChance: 0.20},
	vehicle.West:  {RegularInterval: 2.0, EmergencyInterval: 15, EmergencyChance: 0.30},
	vehicle.South: {RegularInterval: 2.0, EmergencyInterval: 15, EmergencyChance: 0.05},
	vehicle.East:  {RegularInterval: 1.5, EmergencyInterval: 20, EmergencyChance: 0.10},
}

// Heavy vehicles arrive every heavyIntervalMin to heavyIntervalMin+heavyIntervalSpread
// seconds, redrawn after each arrival.
const (
	heavyIntervalMin    = 15
	heavyIntervalSpread = 10
)

// Approach is the engine's view of one direction during a spawn tick.
type Approach interface {
	// SpawnAreaClear reports whether no vehicle in lane sits within the
	// safe distance of the spawn point.
	SpawnAreaClear(lane vehicle.Lane) bool
	// Admit places a new vehicle of class in lane.
	Admit(class vehicle.Class, lane vehicle.Lane)
}

// Stats counts spawner decisions since creation.
type Stats struct {
	Admitted uint64 `json:"admitted"`
	Queued   uint64 `json:"queued"`
	Dropped  uint64 `json:"dropped"`
	Rejected uint64 `json:"rejected"`
}

// Options configures a Spawner. Zero values select the defaults.
type Options struct {
	LaneCapacity  int
	QueueCapacity int
	Profiles      *[vehicle.NumDirections]Profile
	Rand          Rand
	Logger        logrus.FieldLogger
}

// Spawner is the admission controller shared by all direction workers.
type Spawner struct {
	lanes    *LaneRegistry
	queue    *PendingQueue
	profiles [vehicle.NumDirections]Profile
	rng      Rand
	log      logrus.FieldLogger
	stats    Stats

	regularTimers   [vehicle.NumDirections]float64
	emergencyTimers [vehicle.NumDirections]float64
	heavyTimers     [vehicle.NumDirections]float64
	heavyIntervals  [vehicle.NumDirections]float64
}

// New constructs a Spawner. opts.Rand is required.
func New(opts Options) *Spawner {
	profiles := DefaultProfiles
	if opts.Profiles != nil {
		profiles = *opts.Profiles
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Spawner{
		lanes:    NewLaneRegistry(opts.LaneCapacity, opts.Rand),
		queue:    NewPendingQueue(opts.QueueCapacity),
		profiles: profiles,
		rng:      opts.Rand,
		log:      logger,
	}
	for _, d := range vehicle.Directions {
		s.heavyIntervals[d] = s.drawHeavyInterval()
	}
	return s
}

func (s *Spawner) Lanes() *LaneRegistry { return s.lanes }
func (s *Spawner) Queue() *PendingQueue { return s.queue }
func (s *Spawner) Stats() Stats         { return s.stats }

func (s *Spawner) drawHeavyInterval() float64 {
	return float64(heavyIntervalMin + s.rng.Intn(heavyIntervalSpread+1))
}

// Tick runs one spawn pass for dir: drain one pending request, then the heavy,
// emergency, and regular generators. Each branch may admit independently, so
// a single tick can admit several vehicles.
func (s *Spawner) Tick(dir vehicle.Direction, dt float64, tod time.Duration, a Approach) {
	s.drainPending(dir, tod, a)

	if s.ShouldSpawnHeavyVehicle(dir, dt, tod, a) {
		s.admit(dir, vehicle.ClassHeavy, vehicle.Lane2, a)
	}
	if lane, ok := s.ShouldSpawnEmergency(dir, dt, a); ok {
		s.admit(dir, vehicle.ClassEmergency, lane, a)
	}
	if lane, ok := s.ShouldSpawnRegular(dir, dt, a); ok {
		s.admit(dir, vehicle.ClassLight, lane, a)
	}
}

func (s *Spawner) drainPending(dir vehicle.Direction, tod time.Duration, a Approach) {
	req, ok := s.queue.DequeueHighest(dir)
	if !ok {
		return
	}

	if req.Class == vehicle.ClassHeavy {
		if simclock.IsPeak(tod) {
			s.stats.Rejected++
			s.log.WithField("direction", dir).Debug("dropping queued heavy vehicle during peak hours")
			return
		}
		if s.canAdmit(dir, vehicle.Lane2, a) {
			s.admit(dir, req.Class, vehicle.Lane2, a)
			return
		}
		s.queue.Requeue(req)
		return
	}

	lane := s.lanes.LeastOccupiedLane(dir)
	if s.canAdmit(dir, lane, a) {
		s.admit(dir, req.Class, lane, a)
		return
	}
	s.queue.Requeue(req)
}

// ShouldSpawnHeavyVehicle advances the heavy timer of dir and reports whether
// a heavy vehicle may be admitted into lane 2 now. Inside a peak window it
// always returns false and neither advances the timer nor queues demand.
// When the timer expires but lane 2 cannot take the vehicle, demand is queued.
func (s *Spawner) ShouldSpawnHeavyVehicle(dir vehicle.Direction, dt float64, tod time.Duration, a Approach) bool {
	if simclock.IsPeak(tod) {
		return false
	}
	s.heavyTimers[dir] += dt
	if s.heavyTimers[dir] < s.heavyIntervals[dir] {
		return false
	}
	s.heavyTimers[dir] = 0
	s.heavyIntervals[dir] = s.drawHeavyInterval()

	if s.canAdmit(dir, vehicle.Lane2, a) {
		return true
	}
	s.enqueue(dir, vehicle.ClassHeavy)
	return false
}

// ShouldSpawnEmergency advances the emergency timer of dir. On expiry it draws
// against the direction's emergency chance and, on success, returns the lane
// to admit into. Successful draws that cannot be admitted are queued.
func (s *Spawner) ShouldSpawnEmergency(dir vehicle.Direction, dt float64, a Approach) (vehicle.Lane, bool) {
	p := s.profiles[dir]
	s.emergencyTimers[dir] += dt
	if s.emergencyTimers[dir] < p.EmergencyInterval {
		return 0, false
	}
	s.emergencyTimers[dir] = 0
	if s.rng.Float64() >= p.EmergencyChance {
		return 0, false
	}
	return s.pickLane(dir, vehicle.ClassEmergency, a)
}

// ShouldSpawnRegular advances the regular timer of dir and, on expiry, returns
// the lane a light vehicle should enter. Demand that cannot be admitted is
// queued.
func (s *Spawner) ShouldSpawnRegular(dir vehicle.Direction, dt float64, a Approach) (vehicle.Lane, bool) {
	s.regularTimers[dir] += dt
	if s.regularTimers[dir] < s.profiles[dir].RegularInterval {
		return 0, false
	}
	s.regularTimers[dir] = 0
	return s.pickLane(dir, vehicle.ClassLight, a)
}

func (s *Spawner) pickLane(dir vehicle.Direction, class vehicle.Class, a Approach) (vehicle.Lane, bool) {
	lane := s.lanes.LeastOccupiedLane(dir)
	if s.canAdmit(dir, lane, a) {
		return lane, true
	}
	s.enqueue(dir, class)
	return 0, false
}

func (s *Spawner) canAdmit(dir vehicle.Direction, lane vehicle.Lane, a Approach) bool {
	return s.lanes.IsAvailable(dir, lane) && a.SpawnAreaClear(lane)
}

func (s *Spawner) admit(dir vehicle.Direction, class vehicle.Class, lane vehicle.Lane, a Approach) {
	if !s.lanes.Increment(dir, lane) {
		s.enqueue(dir, class)
		return
	}
	s.stats.Admitted++
	a.Admit(class, lane)
}

func (s *Spawner) enqueue(dir vehicle.Direction, class vehicle.Class) {
	if s.queue.Enqueue(class, dir) {
		s.stats.Queued++
		return
	}
	s.stats.Dropped++
	s.log.WithFields(logrus.Fields{"direction": dir, "class": class}).Debug("pending queue full, request dropped")
}

// Release returns the lane capacity held by a departing vehicle and, for
// non-emergency classes, queues replacement demand of the same class to keep
// the approach loaded. Heavy replacements are not queued during peak hours.
func (s *Spawner) Release(dir vehicle.Direction, lane vehicle.Lane, class vehicle.Class, tod time.Duration) {
	s.lanes.Decrement(dir, lane)
	switch {
	case class == vehicle.ClassEmergency:
	case class == vehicle.ClassHeavy && simclock.IsPeak(tod):
	default:
		s.enqueue(dir, class)
	}
}
