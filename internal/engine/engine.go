// Package engine runs the intersection simulation.
//
// The world is advanced by five workers sharing one lock: a control worker
// that owns the traffic light, the simulated clock, and violation detection,
// and one worker per approach that spawns, moves, and removes that approach's
// vehicles. Each worker iteration is a short critical section; challan
// notifications are delivered after the lock is released.
//
// Simulate advances the same world deterministically on the calling
// goroutine, running the four approach ticks and then the control tick.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/cxd309/intersection-sim/internal/challan"
	"github.com/cxd309/intersection-sim/internal/config"
	"github.com/cxd309/intersection-sim/internal/kinematics"
	"github.com/cxd309/intersection-sim/internal/signal"
	"github.com/cxd309/intersection-sim/internal/simclock"
	"github.com/cxd309/intersection-sim/internal/spawner"
	"github.com/cxd309/intersection-sim/internal/vehicle"
)

// Engine owns the simulated world.
type Engine struct {
	opts     Options
	runID    string
	log      logrus.FieldLogger
	notifier challan.Notifier
	motion   kinematics.MotionModel

	mu       sync.Mutex
	rng      Rand
	clock    *simclock.Clock
	lights   *signal.Controller
	spawner  *spawner.Spawner
	vehicles [vehicle.NumDirections][]*vehicle.Vehicle
	stats    Stats

	ids         atomic.Uint64
	undelivered atomic.Uint64
	running     atomic.Bool
	stopped     atomic.Bool
}

// New constructs an Engine with the light showing green to NORTH, empty
// lanes, and the clock at opts.StartOfDay.
func New(opts Options) *Engine {
	opts = opts.withDefaults()
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := opts.Logger.WithField("run_id", runID)
	return &Engine{
		opts:     opts,
		runID:    runID,
		log:      log,
		notifier: opts.Notifier,
		motion:   opts.Motion,
		rng:      opts.Rand,
		clock:    simclock.New(opts.StartOfDay, opts.TimeScale),
		lights:   signal.NewController(signal.WithRepeatChallans(opts.RepeatChallans)),
		spawner: spawner.New(spawner.Options{
			LaneCapacity:  opts.LaneCapacity,
			QueueCapacity: opts.QueueCapacity,
			Rand:          opts.Rand,
			Logger:        log,
		}),
	}
}

// NewFromConfig builds an Engine from validated settings.
func NewFromConfig(cfg config.Config, notifier challan.Notifier, logger logrus.FieldLogger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start, err := cfg.StartOfDay()
	if err != nil {
		return nil, err
	}
	return New(Options{
		RunID:          cfg.RunID,
		StartOfDay:     start,
		Duration:       cfg.Duration,
		TickRate:       cfg.TickRate,
		TimeScale:      cfg.TimeScale,
		Speed:          cfg.Speed,
		LaneCapacity:   cfg.LaneCapacity,
		QueueCapacity:  cfg.QueueCapacity,
		RepeatChallans: cfg.RepeatChallans,
		Seed:           cfg.Seed,
		Notifier:       notifier,
		Logger:         logger,
	}), nil
}

// RunID identifies this run in logs and snapshots.
func (e *Engine) RunID() string { return e.runID }

func (e *Engine) withLock(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// Stop asks every worker to exit after its current iteration.
func (e *Engine) Stop() { e.stopped.Store(true) }

// Running reports whether Run or Simulate is in progress.
func (e *Engine) Running() bool { return e.running.Load() }

func (e *Engine) expired() bool {
	var done bool
	e.withLock(func() { done = e.clock.Elapsed() >= e.opts.Duration })
	return done
}

// directionTick runs one approach iteration: spawn, follow, move, despawn.
func (e *Engine) directionTick(dir vehicle.Direction, dt float64) {
	e.withLock(func() {
		tod := e.clock.TimeOfDay()
		e.spawner.Tick(dir, dt, tod, approachView{e: e, dir: dir})
		e.moveVehicles(dir, dt)
		e.removeExited(dir, tod)
	})
}

func (e *Engine) moveVehicles(dir vehicle.Direction, dt float64) {
	green := e.lights.IsGreen(dir)
	list := e.vehicles[dir]
	for _, v := range list {
		ceiling := v.MaxSpeed
		safe := v.SafeDistance()
		for _, other := range list {
			if other == v || other.Lane != v.Lane {
				continue
			}
			ceiling = kinematics.FollowingSpeed(ceiling, other.Position-v.Position, safe, other.CurrentSpeed)
		}
		v.CurrentSpeed = ceiling
		v.Advance(dt, green, e.motion, e.rng)
	}
}

func (e *Engine) removeExited(dir vehicle.Direction, tod time.Duration) {
	list := e.vehicles[dir]
	kept := list[:0]
	for _, v := range list {
		if !v.Exited() {
			kept = append(kept, v)
			continue
		}
		e.spawner.Release(dir, v.Lane, v.Class, tod)
		e.stats.Despawned++
		e.log.WithFields(logrus.Fields{
			"direction":  dir,
			"vehicle_id": v.ID,
		}).Debug("vehicle exited")
	}
	for i := len(kept); i < len(list); i++ {
		list[i] = nil
	}
	e.vehicles[dir] = kept
}

// controlTick advances the light and the clock, then reports violations.
func (e *Engine) controlTick(ctx context.Context, dt float64) []challan.Event {
	var events []challan.Event
	e.withLock(func() {
		e.clock.Advance(dt)
		if e.lights.Update(dt) {
			st := e.lights.State()
			e.log.WithFields(logrus.Fields{
				"direction": st.CurrentGreen,
				"phase":     st.Phase,
			}).Debug("signal changed")
		}
		events = e.lights.Scan(e.vehicles)
		e.stats.Challans += uint64(len(events))
	})
	e.deliver(ctx, events)
	return events
}

func (e *Engine) deliver(ctx context.Context, events []challan.Event) {
	for _, ev := range events {
		log := e.log.WithFields(logrus.Fields{
			"vehicle_id": ev.VehicleID,
			"speed":      ev.Speed,
			"heavy":      ev.IsHeavy,
		})
		if err := e.notifier.Notify(ctx, ev); err != nil {
			e.undelivered.Add(1)
			log.WithError(err).Warn("challan not delivered")
			continue
		}
		log.Info("challan issued")
	}
}

// approachView exposes one direction to the spawner. It is only used while
// the engine lock is held.
type approachView struct {
	e   *Engine
	dir vehicle.Direction
}

func (a approachView) SpawnAreaClear(lane vehicle.Lane) bool {
	for _, v := range a.e.vehicles[a.dir] {
		if v.Lane == lane && math.Abs(v.Position) < vehicle.SpawnSafeDistance {
			return false
		}
	}
	return true
}

func (a approachView) Admit(class vehicle.Class, lane vehicle.Lane) {
	e := a.e
	id := vehicle.FormatID(class, e.ids.Add(1))
	v := vehicle.New(id, class, a.dir, lane, vehicle.InitialSpeed(class, e.rng))
	e.vehicles[a.dir] = append(e.vehicles[a.dir], v)
	e.stats.Spawned++
	e.log.WithFields(logrus.Fields{
		"direction":  a.dir,
		"vehicle_id": id,
		"lane":       int(lane),
	}).Debug("vehicle spawned")
}

// Snapshot returns a consistent copy of the world.
func (e *Engine) Snapshot() Snapshot {
	var s Snapshot
	e.withLock(func() { s = e.snapshotLocked() })
	return s
}

func (e *Engine) snapshotLocked() Snapshot {
	all := lo.Flatten(e.vehicles[:])
	lanes := e.spawner.Lanes()
	queue := e.spawner.Queue()

	s := Snapshot{
		RunID:     e.runID,
		Elapsed:   e.clock.Elapsed(),
		TimeOfDay: simclock.FormatTimeOfDay(e.clock.TimeOfDay()),
		Peak:      e.clock.Peak(),
		Signal:    e.lights.State(),
		Lights:    make(map[vehicle.Direction]signal.Phase, vehicle.NumDirections),
		Lanes:     make(map[vehicle.Direction]LaneCounts, vehicle.NumDirections),
		Pending:   make(map[vehicle.Direction]int, vehicle.NumDirections),
		Vehicles:  lo.Map(all, func(v *vehicle.Vehicle, _ int) vehicle.Snapshot { return v.Snapshot() }),
	}
	lights := e.lights.Lights()
	for _, d := range vehicle.Directions {
		s.Lights[d] = lights[d]
		s.Lanes[d] = LaneCounts{Lane1: lanes.Count(d, vehicle.Lane1), Lane2: lanes.Count(d, vehicle.Lane2)}
		s.Pending[d] = queue.Len(d)
	}

	s.Stats = e.stats
	s.Stats.Undelivered = e.undelivered.Load()
	s.Stats.Spawner = e.spawner.Stats()
	s.Stats.Live = len(all)
	s.Stats.LiveByClass = lo.CountValuesBy(all, func(v *vehicle.Vehicle) vehicle.Class { return v.Class })
	s.Stats.ActiveChallans = lo.CountBy(all, func(v *vehicle.Vehicle) bool { return v.HasChallan })
	return s
}

// Simulate advances the world on the calling goroutine in steps of dt until
// the configured duration elapses, ctx is cancelled, or Stop is called.
func (e *Engine) Simulate(ctx context.Context, dt float64) (RunSummary, error) {
	if dt <= 0 {
		return RunSummary{}, fmt.Errorf("simulate: step must be positive, got %v", dt)
	}
	if !e.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrAlreadyRunning
	}
	defer e.running.Store(false)
	e.stopped.Store(false)

	summary := RunSummary{
		RunID:     e.runID,
		StartTime: simclock.FormatTimeOfDay(e.opts.StartOfDay),
		Challans:  []challan.Event{},
	}
	e.log.WithField("step", dt).Info("batch simulation started")
	for !e.stopped.Load() && !e.expired() {
		if err := ctx.Err(); err != nil {
			return RunSummary{}, err
		}
		for _, d := range vehicle.Directions {
			e.directionTick(d, dt)
		}
		summary.Challans = append(summary.Challans, e.controlTick(ctx, dt)...)
		summary.Ticks++
	}

	summary.Final = e.Snapshot()
	summary.EndTime = summary.Final.TimeOfDay
	e.log.WithFields(logrus.Fields{
		"ticks":    summary.Ticks,
		"spawned":  summary.Final.Stats.Spawned,
		"challans": summary.Final.Stats.Challans,
	}).Info("batch simulation finished")
	return summary, nil
}

// RunJSON is the entry point shared by the CLI batch mode and the WASM
// build. It accepts JSON-encoded settings, runs a batch simulation at the
// configured tick rate, and returns the JSON-encoded RunSummary.
func RunJSON(jsonInput string) (string, error) {
	cfg := config.Default()
	if err := config.Parse([]byte(jsonInput), true, &cfg); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}
	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return "", err
	}
	eng, err := NewFromConfig(cfg, challan.Discard{}, logger)
	if err != nil {
		return "", err
	}

	summary, err := eng.Simulate(context.Background(), 1/cfg.TickRate)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
