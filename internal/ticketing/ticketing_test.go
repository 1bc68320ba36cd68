package ticketing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/intersection-sim/internal/challan"
)

var issueTime = time.Date(2024, time.May, 6, 9, 30, 0, 0, time.UTC)

func newTestLedger() *Ledger {
	n := 0
	return NewLedger(
		WithClock(func() time.Time { return issueTime }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("C%d", n) }),
	)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestFineFor(t *testing.T) {
	fine, charge := FineFor(false)
	assert.Equal(t, 5000.0, fine)
	assert.InDelta(t, 850.0, charge, 1e-9)

	fine, charge = FineFor(true)
	assert.Equal(t, 7000.0, fine)
	assert.InDelta(t, 1190.0, charge, 1e-9)
}

func TestIssueDedupesWhileOutstanding(t *testing.T) {
	l := newTestLedger()

	c, issued := l.Issue(challan.NewEvent("Light4", 70, false))
	require.True(t, issued)
	assert.Equal(t, "C1", c.ID)
	assert.Equal(t, StatusUnpaid, c.Status)
	assert.InDelta(t, 5850.0, c.Amount(), 1e-9)
	assert.Equal(t, issueTime.Add(72*time.Hour), c.DueAt)

	dup, issued := l.Issue(challan.NewEvent("Light4", 75, false))
	assert.False(t, issued)
	assert.Equal(t, "C1", dup.ID)
	assert.Equal(t, 1, l.Issued())

	_, err := l.ApplyPayment(Payment{ChallanID: "C1", VehicleID: "Light4", Status: StatusPaid})
	require.NoError(t, err)

	again, issued := l.Issue(challan.NewEvent("Light4", 66, false))
	assert.True(t, issued, "a new challan after the old one is paid")
	assert.Equal(t, "C2", again.ID)
}

func TestPortalRecord(t *testing.T) {
	l := newTestLedger()
	c, _ := l.Issue(challan.NewEvent("Heavy2", 45, true))

	fields := strings.Split(c.PortalRecord(), ",")
	require.Len(t, fields, 4)
	assert.Equal(t, "Heavy2", fields[0])
	assert.Equal(t, "8190.00", fields[1])
	assert.Equal(t, "Mon May  6 09:30:00 2024", fields[2])
	assert.Equal(t, "Thu May  9 09:30:00 2024", fields[3])
}

func TestParsePayment(t *testing.T) {
	p, err := ParsePayment("C7,Light3,Paid\x00")
	require.NoError(t, err)
	assert.Equal(t, Payment{ChallanID: "C7", VehicleID: "Light3", Status: StatusPaid}, p)
	assert.Equal(t, "C7,Light3,Paid", p.String())

	for _, bad := range []string{"", "C7,Light3", "C7,Light3,Paid,extra", ",,Paid", "C7,Light3,"} {
		_, err := ParsePayment(bad)
		assert.ErrorIs(t, err, ErrMalformedPayment, bad)
	}
}

func TestApplyPayment(t *testing.T) {
	l := newTestLedger()
	l.Issue(challan.NewEvent("Light1", 70, false))
	l.Issue(challan.NewEvent("Heavy2", 50, true))

	t.Run("pending status leaves challan open", func(t *testing.T) {
		c, err := l.ApplyPayment(Payment{ChallanID: "C1", VehicleID: "Light1", Status: "Pending"})
		require.NoError(t, err)
		assert.Equal(t, StatusUnpaid, c.Status)
	})

	t.Run("falls back to vehicle lookup", func(t *testing.T) {
		c, err := l.ApplyPayment(Payment{ChallanID: "stale", VehicleID: "Heavy2", Status: StatusPaid})
		require.NoError(t, err)
		assert.Equal(t, "C2", c.ID)
		assert.Equal(t, StatusPaid, c.Status)
	})

	t.Run("unknown challan", func(t *testing.T) {
		_, err := l.ApplyPayment(Payment{ChallanID: "C9", VehicleID: "Light9", Status: StatusPaid})
		assert.ErrorIs(t, err, ErrUnknownChallan)
	})

	t.Run("vehicle mismatch", func(t *testing.T) {
		_, err := l.ApplyPayment(Payment{ChallanID: "C1", VehicleID: "Heavy2", Status: StatusPaid})
		assert.ErrorIs(t, err, ErrUnknownChallan)
	})

	outstanding := l.Outstanding()
	require.Len(t, outstanding, 1)
	assert.Equal(t, "Light1", outstanding[0].VehicleID)
}

func TestAccount(t *testing.T) {
	l := newTestLedger()
	l.Issue(challan.NewEvent("Light1", 70, false))
	_, err := l.ApplyPayment(Payment{ChallanID: "C1", VehicleID: "Light1", Status: StatusPaid})
	require.NoError(t, err)
	l.Issue(challan.NewEvent("Light1", 64, false))

	acct := l.Account("Light1")
	assert.Len(t, acct.Paid, 1)
	require.Len(t, acct.Outstanding, 1)
	assert.Equal(t, "C2", acct.Outstanding[0].ID)
	assert.InDelta(t, 5850.0, acct.AmountDue, 1e-9)

	empty := l.Account("Nobody")
	assert.Empty(t, empty.Outstanding)
	assert.Zero(t, empty.AmountDue)
}

func TestLedgerConcurrentIssue(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Issue(challan.NewEvent("Light1", 70, false))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, l.Issued())
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs map[string][]string
	err  error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.msgs == nil {
		p.msgs = map[string][]string{}
	}
	p.msgs[subject] = append(p.msgs[subject], string(data))
	return nil
}

func TestServiceForwardsNewChallans(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(newTestLedger(), pub, "", quietLogger())

	rec, err := challan.NewEvent("Light5", 72, false).MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, svc.HandleChallanRecord(rec))
	require.NoError(t, svc.HandleChallanRecord(rec))

	portal := pub.msgs[challan.DefaultPortalSubject]
	require.Len(t, portal, 1, "duplicates are not forwarded")
	assert.True(t, strings.HasPrefix(portal[0], "Light5,5850.00,"))

	require.NoError(t, svc.HandlePaymentRecord([]byte("C1,Light5,Paid")))
	assert.Empty(t, svc.Ledger().Outstanding())

	assert.ErrorIs(t, svc.HandlePaymentRecord([]byte("garbage")), ErrMalformedPayment)
	assert.ErrorIs(t, svc.HandleChallanRecord([]byte{1, 2}), challan.ErrShortRecord)
}

func TestServicePortalFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats: connection closed")}
	svc := NewService(newTestLedger(), pub, "portal", quietLogger())

	err := svc.HandleEvent(challan.NewEvent("Light1", 70, false))
	assert.Error(t, err)
	assert.Equal(t, 1, svc.Ledger().Issued(), "the challan is still recorded")
}

type fakeSubscriber struct {
	handlers map[string]nats.MsgHandler
}

func (f *fakeSubscriber) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	if f.handlers == nil {
		f.handlers = map[string]nats.MsgHandler{}
	}
	f.handlers[subject] = cb
	return &nats.Subscription{Subject: subject}, nil
}

func TestServiceSubscribe(t *testing.T) {
	svc := NewService(newTestLedger(), nil, "", quietLogger())
	sub := &fakeSubscriber{}

	subs, err := svc.Subscribe(sub, "challans", "payments")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	rec, err := challan.NewEvent("Heavy3", 48, true).MarshalBinary()
	require.NoError(t, err)
	sub.handlers["challans"](&nats.Msg{Subject: "challans", Data: rec})
	sub.handlers["payments"](&nats.Msg{Subject: "payments", Data: []byte("nonsense")})

	assert.Equal(t, 1, svc.Ledger().Issued())
	assert.Len(t, svc.Ledger().Outstanding(), 1)
}

func TestServiceConsume(t *testing.T) {
	svc := NewService(newTestLedger(), nil, "", quietLogger())
	events := make(chan challan.Event, 3)
	events <- challan.NewEvent("Light1", 70, false)
	events <- challan.NewEvent("Light1", 71, false)
	events <- challan.NewEvent("Heavy2", 45, true)
	close(events)

	svc.Consume(context.Background(), events)

	assert.Equal(t, 2, svc.Ledger().Issued())
}
