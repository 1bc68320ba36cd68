package ticketing

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/cxd309/intersection-sim/internal/challan"
)

// Subscriber is the slice of *nats.Conn the service needs to listen.
type Subscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Service feeds the ledger from violation and payment traffic and forwards
// newly issued challans to the user portal as portal records.
type Service struct {
	ledger        *Ledger
	portal        challan.Publisher // nil disables forwarding
	portalSubject string
	log           logrus.FieldLogger
}

// NewService returns a Service over ledger. portal may be nil.
func NewService(ledger *Ledger, portal challan.Publisher, portalSubject string, log logrus.FieldLogger) *Service {
	if portalSubject == "" {
		portalSubject = challan.DefaultPortalSubject
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{ledger: ledger, portal: portal, portalSubject: portalSubject, log: log}
}

func (s *Service) Ledger() *Ledger { return s.ledger }

// HandleEvent issues a challan for ev and forwards it to the portal.
// Duplicates for a vehicle with an outstanding challan are ignored.
func (s *Service) HandleEvent(ev challan.Event) error {
	c, issued := s.ledger.Issue(ev)
	log := s.log.WithFields(logrus.Fields{"vehicle_id": ev.VehicleID, "challan_id": c.ID})
	if !issued {
		log.Debug("duplicate challan ignored")
		return nil
	}
	log.WithField("amount", c.Amount()).Info("challan recorded")
	if s.portal == nil {
		return nil
	}
	if err := s.portal.Publish(s.portalSubject, []byte(c.PortalRecord())); err != nil {
		return fmt.Errorf("forwarding challan %s to portal: %w", c.ID, err)
	}
	return nil
}

// HandleChallanRecord decodes a binary challan record and handles it.
func (s *Service) HandleChallanRecord(data []byte) error {
	var ev challan.Event
	if err := ev.UnmarshalBinary(data); err != nil {
		return err
	}
	return s.HandleEvent(ev)
}

// HandlePaymentRecord applies a payment-status record.
func (s *Service) HandlePaymentRecord(data []byte) error {
	p, err := ParsePayment(string(data))
	if err != nil {
		return err
	}
	c, err := s.ledger.ApplyPayment(p)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"vehicle_id": c.VehicleID,
		"challan_id": c.ID,
		"status":     c.Status,
	}).Info("payment applied")
	return nil
}

// Subscribe attaches the service to the challan and payment subjects.
// The returned subscriptions should be drained by the caller on shutdown.
func (s *Service) Subscribe(sub Subscriber, challanSubject, paymentSubject string) ([]*nats.Subscription, error) {
	handlers := []struct {
		subject string
		handle  func([]byte) error
	}{
		{challanSubject, s.HandleChallanRecord},
		{paymentSubject, s.HandlePaymentRecord},
	}
	subs := make([]*nats.Subscription, 0, len(handlers))
	for _, h := range handlers {
		h := h
		sn, err := sub.Subscribe(h.subject, func(m *nats.Msg) {
			if err := h.handle(m.Data); err != nil {
				s.log.WithError(err).WithField("subject", m.Subject).Warn("record rejected")
			}
		})
		if err != nil {
			return subs, fmt.Errorf("subscribing to %s: %w", h.subject, err)
		}
		subs = append(subs, sn)
	}
	return subs, nil
}

// Consume handles events from an in-process channel until it is closed or
// ctx is done.
func (s *Service) Consume(ctx context.Context, events <-chan challan.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.HandleEvent(ev); err != nil {
				s.log.WithError(err).Warn("challan not forwarded")
			}
		}
	}
}
