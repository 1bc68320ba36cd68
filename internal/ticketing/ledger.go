// Package ticketing is the headless ticketing collaborator. It turns
// violation events into challans with fines and due dates, keeps at most
// one outstanding challan per vehicle, and settles challans from
// payment-status records.
package ticketing

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/cxd309/intersection-sim/internal/challan"
)

var (
	ErrMalformedPayment = errors.New("malformed payment record")
	ErrUnknownChallan   = errors.New("unknown challan")
)

// Fine schedule in rupees.
const (
	LightFine     = 5000.0
	HeavyFine     = 7000.0
	ServiceCharge = 0.17
	DueAfter      = 3 * 24 * time.Hour
)

// DateLayout renders issue and due dates in portal records.
const DateLayout = time.ANSIC

// Status is the payment state of a challan.
type Status string

const (
	StatusUnpaid Status = "Unpaid"
	StatusPaid   Status = "Paid"
)

// Challan is an issued ticket.
type Challan struct {
	ID            string    `json:"id"`
	VehicleID     string    `json:"vehicle_id"`
	Heavy         bool      `json:"heavy"`
	Speed         float32   `json:"speed"`
	Fine          float64   `json:"fine"`
	ServiceCharge float64   `json:"service_charge"`
	IssuedAt      time.Time `json:"issued_at"`
	DueAt         time.Time `json:"due_at"`
	Status        Status    `json:"status"`
}

// Amount is the fine plus the service charge.
func (c Challan) Amount() float64 { return c.Fine + c.ServiceCharge }

// PortalRecord renders the challan as vehicleId,amount,issueDate,dueDate.
func (c Challan) PortalRecord() string {
	return strings.Join([]string{
		c.VehicleID,
		strconv.FormatFloat(c.Amount(), 'f', 2, 64),
		c.IssuedAt.Format(DateLayout),
		c.DueAt.Format(DateLayout),
	}, ",")
}

// FineFor returns the base fine and the service charge for a vehicle class.
func FineFor(heavy bool) (fine, charge float64) {
	fine = LightFine
	if heavy {
		fine = HeavyFine
	}
	return fine, fine * ServiceCharge
}

// Account is the view of one vehicle's challans.
type Account struct {
	VehicleID   string    `json:"vehicle_id"`
	Outstanding []Challan `json:"outstanding"`
	Paid        []Challan `json:"paid"`
	AmountDue   float64   `json:"amount_due"`
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock replaces the wall clock used for issue dates.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator replaces the challan ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// Ledger records challans. It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	now     func() time.Time
	newID   func() string
	byID    map[string]*Challan
	active  map[string]string // vehicle ID -> outstanding challan ID
	ordered []*Challan
}

// NewLedger returns an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		now:    time.Now,
		newID:  uuid.NewString,
		byID:   make(map[string]*Challan),
		active: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Issue records a challan for ev. While the vehicle has an outstanding
// challan the event is ignored and Issue returns false.
func (l *Ledger) Issue(ev challan.Event) (Challan, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.active[ev.VehicleID]; ok {
		return *l.byID[id], false
	}
	fine, charge := FineFor(ev.IsHeavy)
	issued := l.now()
	c := &Challan{
		ID:            l.newID(),
		VehicleID:     ev.VehicleID,
		Heavy:         ev.IsHeavy,
		Speed:         ev.Speed,
		Fine:          fine,
		ServiceCharge: charge,
		IssuedAt:      issued,
		DueAt:         issued.Add(DueAfter),
		Status:        StatusUnpaid,
	}
	l.byID[c.ID] = c
	l.active[c.VehicleID] = c.ID
	l.ordered = append(l.ordered, c)
	return *c, true
}

// ApplyPayment applies a payment-status record. The challan is found by ID,
// falling back to the vehicle's outstanding challan. Only StatusPaid changes
// state; other statuses leave the challan as it is.
func (l *Ledger) ApplyPayment(p Payment) (Challan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.byID[p.ChallanID]
	if !ok {
		id, active := l.active[p.VehicleID]
		if !active {
			return Challan{}, fmt.Errorf("%w: %s for vehicle %s", ErrUnknownChallan, p.ChallanID, p.VehicleID)
		}
		c = l.byID[id]
	}
	if p.VehicleID != "" && c.VehicleID != p.VehicleID {
		return Challan{}, fmt.Errorf("%w: %s belongs to %s, not %s", ErrUnknownChallan, c.ID, c.VehicleID, p.VehicleID)
	}
	if p.Status == StatusPaid && c.Status != StatusPaid {
		c.Status = StatusPaid
		if l.active[c.VehicleID] == c.ID {
			delete(l.active, c.VehicleID)
		}
	}
	return *c, nil
}

// Get returns the challan with id.
func (l *Ledger) Get(id string) (Challan, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.byID[id]
	if !ok {
		return Challan{}, false
	}
	return *c, true
}

// Outstanding returns every unpaid challan ordered by vehicle ID.
func (l *Ledger) Outstanding() []Challan {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := lo.FilterMap(l.ordered, func(c *Challan, _ int) (Challan, bool) {
		return *c, c.Status == StatusUnpaid
	})
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// Issued returns the number of challans ever issued.
func (l *Ledger) Issued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ordered)
}

// Account returns the challans of vehicleID in issue order.
func (l *Ledger) Account(vehicleID string) Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	mine := lo.FilterMap(l.ordered, func(c *Challan, _ int) (Challan, bool) {
		return *c, c.VehicleID == vehicleID
	})
	isPaid := func(c Challan, _ int) bool { return c.Status == StatusPaid }
	paid := lo.Filter(mine, isPaid)
	outstanding := lo.Reject(mine, isPaid)
	return Account{
		VehicleID:   vehicleID,
		Outstanding: outstanding,
		Paid:        paid,
		AmountDue:   lo.SumBy(outstanding, func(c Challan) float64 { return c.Amount() }),
	}
}
