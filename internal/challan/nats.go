package challan

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Default subjects shared by the simulation and the ticketing collaborator.
const (
	DefaultSubject        = "traffix.challan"
	DefaultPaymentSubject = "traffix.payment"
	DefaultPortalSubject  = "traffix.portal"
)

// Publisher is the slice of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes encoded events on a NATS subject. Publish is
// buffered by the client, so Notify never waits on the network.
type NATSNotifier struct {
	pub     Publisher
	subject string
}

// NewNATSNotifier returns a notifier publishing to subject via pub.
func NewNATSNotifier(pub Publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{pub: pub, subject: subject}
}

func (n *NATSNotifier) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := ev.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding challan for %s: %w", ev.VehicleID, err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publishing challan for %s on %s: %w", ev.VehicleID, n.subject, err)
	}
	return nil
}

// Connect dials a NATS server with the reconnect behaviour both processes use.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return nc, nil
}
