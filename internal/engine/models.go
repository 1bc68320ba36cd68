package engine

import (
	"errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/intersection-sim/internal/challan"
	"github.com/cxd309/intersection-sim/internal/kinematics"
	"github.com/cxd309/intersection-sim/internal/signal"
	"github.com/cxd309/intersection-sim/internal/spawner"
	"github.com/cxd309/intersection-sim/internal/vehicle"
)

// ErrAlreadyRunning is returned when Run or Simulate is called on an engine
// that is already executing.
var ErrAlreadyRunning = errors.New("engine already running")

// Rand is the randomness source shared by the spawner and the vehicles.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	RunID          string
	StartOfDay     time.Duration // simulated time of day at t=0
	Duration       float64       // simulation seconds before every worker stops
	TickRate       float64       // worker iterations per wall second
	TimeScale      float64       // simulated seconds per simulation second
	Speed          float64       // simulation seconds per wall second
	LaneCapacity   int
	QueueCapacity  int
	RepeatChallans bool
	Seed           int64 // 0 seeds from the wall clock
	Rand           Rand  // overrides Seed
	Motion         kinematics.MotionModel
	Notifier       challan.Notifier
	Logger         logrus.FieldLogger
}

const (
	defaultDuration = 300.0
	defaultTickRate = 60.0
)

func (o Options) withDefaults() Options {
	if o.Duration <= 0 {
		o.Duration = defaultDuration
	}
	if o.TickRate <= 0 {
		o.TickRate = defaultTickRate
	}
	if o.Speed <= 0 {
		o.Speed = 1
	}
	if o.Rand == nil {
		seed := o.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		o.Rand = rand.New(rand.NewSource(seed))
	}
	if o.Motion == nil {
		o.Motion = kinematics.DefaultStep
	}
	if o.Notifier == nil {
		o.Notifier = challan.Discard{}
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

// Stats aggregates counters over a run.
type Stats struct {
	Spawned        uint64                `json:"spawned"`
	Despawned      uint64                `json:"despawned"`
	Challans       uint64                `json:"challans"`
	Undelivered    uint64                `json:"undelivered"`
	Spawner        spawner.Stats         `json:"spawner"`
	Live           int                   `json:"live"`
	LiveByClass    map[vehicle.Class]int `json:"live_by_class"`
	ActiveChallans int                   `json:"active_challans"`
}

// LaneCounts is the occupancy of both lanes of one approach.
type LaneCounts struct {
	Lane1 int `json:"lane1"`
	Lane2 int `json:"lane2"`
}

// Snapshot is a read-only copy of the world for presentation clients.
type Snapshot struct {
	RunID     string                             `json:"run_id"`
	Elapsed   float64                            `json:"elapsed"`
	TimeOfDay string                             `json:"time_of_day"`
	Peak      bool                               `json:"peak"`
	Signal    signal.State                       `json:"signal"`
	Lights    map[vehicle.Direction]signal.Phase `json:"lights"`
	Lanes     map[vehicle.Direction]LaneCounts   `json:"lanes"`
	Pending   map[vehicle.Direction]int          `json:"pending"`
	Vehicles  []vehicle.Snapshot                 `json:"vehicles"`
	Stats     Stats                              `json:"stats"`
}

// RunSummary is the JSON result of a batch run.
type RunSummary struct {
	RunID     string          `json:"run_id"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	Ticks     int             `json:"ticks"`
	Challans  []challan.Event `json:"challans"`
	Final     Snapshot        `json:"final"`
}
