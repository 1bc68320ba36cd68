// Command challan is the ticketing collaborator. It records violations
// published by the simulation, forwards new challans to the user portal
// subject, and settles them from payment-status records.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/intersection-sim/internal/challan"
	"github.com/cxd309/intersection-sim/internal/config"
	"github.com/cxd309/intersection-sim/internal/ticketing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	path := flag.String("config", "", "YAML or JSON config file")
	natsURL := flag.String("nats", "", "NATS server URL, overrides the config file")
	flag.Parse()

	cfg := config.Default()
	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *natsURL != "" {
		cfg.NATS.URL = *natsURL
	}
	if cfg.NATS.URL == "" {
		return fmt.Errorf("%w: nats.url is required", config.ErrInvalidConfig)
	}

	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	nc, err := challan.Connect(cfg.NATS.URL, "challan")
	if err != nil {
		return err
	}
	defer nc.Close()

	svc := ticketing.NewService(ticketing.NewLedger(), nc, cfg.NATS.PortalSubject, logger)
	if _, err := svc.Subscribe(nc, cfg.NATS.Subject, cfg.NATS.PaymentSubject); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"challans": cfg.NATS.Subject,
		"payments": cfg.NATS.PaymentSubject,
		"portal":   cfg.NATS.PortalSubject,
	}).Info("ticketing collaborator ready")

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if err := nc.Drain(); err != nil {
		logger.WithError(err).Warn("draining nats connection")
	}
	logger.WithField("outstanding", len(svc.Ledger().Outstanding())).Info("ticketing collaborator stopped")
	return nil
}
