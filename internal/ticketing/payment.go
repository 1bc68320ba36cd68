package ticketing

import (
	"fmt"
	"strings"
)

// Payment is a payment-status record: challanId,vehicleId,status.
type Payment struct {
	ChallanID string
	VehicleID string
	Status    Status
}

// ParsePayment decodes a payment-status record. Surrounding whitespace and
// a trailing NUL are ignored.
func ParsePayment(s string) (Payment, error) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Payment{}, fmt.Errorf("%w: %q has %d fields, want 3", ErrMalformedPayment, s, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" && parts[1] == "" {
		return Payment{}, fmt.Errorf("%w: %q names no challan or vehicle", ErrMalformedPayment, s)
	}
	if parts[2] == "" {
		return Payment{}, fmt.Errorf("%w: %q has no status", ErrMalformedPayment, s)
	}
	return Payment{ChallanID: parts[0], VehicleID: parts[1], Status: Status(parts[2])}, nil
}

// String encodes p in the record format accepted by ParsePayment.
func (p Payment) String() string {
	return p.ChallanID + "," + p.VehicleID + "," + string(p.Status)
}
