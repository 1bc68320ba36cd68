package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/intersection-sim/internal/simclock"
	"github.com/cxd309/intersection-sim/internal/vehicle"
)

// Run starts the control worker and the four approach workers and blocks
// until all of them have exited. Workers stop when the simulated duration
// has elapsed, Stop is called, or ctx is cancelled; the last case returns
// ctx's error.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)
	e.stopped.Store(false)

	e.log.WithFields(logrus.Fields{
		"start":    simclock.FormatTimeOfDay(e.opts.StartOfDay),
		"duration": e.opts.Duration,
	}).Info("simulation started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.worker(ctx, "control", func(dt float64) { e.controlTick(ctx, dt) })
	}()
	for _, d := range vehicle.Directions {
		wg.Add(1)
		go func(dir vehicle.Direction) {
			defer wg.Done()
			e.worker(ctx, dir.String(), func(dt float64) { e.directionTick(dir, dt) })
		}(d)
	}
	wg.Wait()

	snap := e.Snapshot()
	e.log.WithFields(logrus.Fields{
		"elapsed":  snap.Elapsed,
		"spawned":  snap.Stats.Spawned,
		"challans": snap.Stats.Challans,
	}).Info("simulation stopped")
	return ctx.Err()
}

func (e *Engine) active(ctx context.Context) bool {
	return ctx.Err() == nil && !e.stopped.Load() && !e.expired()
}

// worker calls tick at the configured rate with the measured simulation
// time since the previous call.
func (e *Engine) worker(ctx context.Context, name string, tick func(dt float64)) {
	log := e.log.WithField("worker", name)
	log.Debug("worker started")
	defer log.Debug("worker stopped")

	ticker := time.NewTicker(time.Duration(float64(time.Second) / e.opts.TickRate))
	defer ticker.Stop()

	last := time.Now()
	for e.active(ctx) {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds() * e.opts.Speed
			last = now
			tick(dt)
		}
	}
}
