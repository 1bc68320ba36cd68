// Command intersection-sim runs the intersection simulation.
//
// By default the five workers run in real time until the configured
// duration elapses or the process is interrupted. With -batch the world is
// stepped deterministically and a JSON run summary is written to stdout.
// Violations go to NATS when a server URL is configured, otherwise to an
// in-process ticketing ledger.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/intersection-sim/internal/challan"
	"github.com/cxd309/intersection-sim/internal/config"
	"github.com/cxd309/intersection-sim/internal/engine"
	"github.com/cxd309/intersection-sim/internal/stream"
	"github.com/cxd309/intersection-sim/internal/ticketing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, batch, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier, closeNotifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	eng, err := engine.NewFromConfig(cfg, notifier, logger)
	if err != nil {
		return err
	}

	if batch {
		summary, err := eng.Simulate(ctx, 1/cfg.TickRate)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	if cfg.Stream.Listen != "" {
		srv := stream.NewServer(eng, time.Duration(cfg.Stream.Interval*float64(time.Second)), logger)
		go srv.Run(ctx)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Stream.Listen); err != nil {
				logger.WithError(err).Error("snapshot feed stopped")
			}
		}()
	}

	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// loadConfig reads the optional config file and applies flags set on the
// command line over it.
func loadConfig(args []string) (config.Config, bool, error) {
	fs := flag.NewFlagSet("intersection-sim", flag.ContinueOnError)
	var (
		path      = fs.String("config", "", "YAML or JSON config file")
		batch     = fs.Bool("batch", false, "step deterministically and print a JSON summary")
		start     = fs.String("start", "", "simulated start time HH:MM")
		duration  = fs.Float64("duration", 0, "simulation seconds to run")
		speed     = fs.Float64("speed", 0, "simulation seconds per wall second")
		seed      = fs.Int64("seed", 0, "random seed, 0 for time based")
		repeat    = fs.Bool("repeat-challans", false, "report a violation on every tick it persists")
		natsURL   = fs.String("nats", "", "NATS server URL for challan delivery")
		listen    = fs.String("listen", "", "address for the snapshot feed, e.g. :8080")
		logLevel  = fs.String("log-level", "", "log level")
		logFormat = fs.String("log-format", "", "log format: text or json")
	)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, false, err
	}

	cfg := config.Default()
	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			return config.Config{}, false, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start":
			cfg.StartTime = *start
		case "duration":
			cfg.Duration = *duration
		case "speed":
			cfg.Speed = *speed
		case "seed":
			cfg.Seed = *seed
		case "repeat-challans":
			cfg.RepeatChallans = *repeat
		case "nats":
			cfg.NATS.URL = *natsURL
		case "listen":
			cfg.Stream.Listen = *listen
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		return config.Config{}, false, err
	}
	return cfg, *batch, nil
}

// newNotifier connects the challan channel: NATS when configured, otherwise
// an in-process ticketing service fed through a buffered channel.
func newNotifier(ctx context.Context, cfg config.Config, logger *logrus.Logger) (challan.Notifier, func(), error) {
	if cfg.NATS.URL != "" {
		nc, err := challan.Connect(cfg.NATS.URL, "intersection-sim")
		if err != nil {
			return nil, nil, err
		}
		return challan.NewNATSNotifier(nc, cfg.NATS.Subject), func() {
			if err := nc.Drain(); err != nil {
				logger.WithError(err).Warn("draining nats connection")
			}
		}, nil
	}

	ch := challan.NewChanNotifier(64)
	svc := ticketing.NewService(ticketing.NewLedger(), nil, "", logger.WithField("component", "ticketing"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Consume(ctx, ch.Events())
	}()
	return ch, func() {
		ch.Close()
		<-done
		logger.WithField("outstanding", len(svc.Ledger().Outstanding())).
			WithField("issued", svc.Ledger().Issued()).
			Info("ticketing ledger closed")
	}, nil
}
