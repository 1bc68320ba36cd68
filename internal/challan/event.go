// Package challan carries speeding-violation notifications from the simulation
// to the external ticketing collaborator. Delivery is fire-and-forget: a
// Notifier never blocks the simulation and failures only drop the event.
package challan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MaxVehicleIDLen is the longest vehicle id a record can carry.
const MaxVehicleIDLen = 49

// RecordSize is the fixed length of an encoded Event:
// a NUL-padded id field, a little-endian float32 speed, and a heavy flag.
const RecordSize = MaxVehicleIDLen + 1 + 4 + 1

// ErrShortRecord is returned when decoding fewer than RecordSize bytes.
var ErrShortRecord = errors.New("challan record too short")

// Event is a single violation detection.
type Event struct {
	VehicleID string  `json:"vehicle_id"`
	Speed     float32 `json:"speed"`
	IsHeavy   bool    `json:"is_heavy"`
}

// NewEvent builds an event, truncating the vehicle id to MaxVehicleIDLen.
func NewEvent(vehicleID string, speed float64, heavy bool) Event {
	if len(vehicleID) > MaxVehicleIDLen {
		vehicleID = vehicleID[:MaxVehicleIDLen]
	}
	return Event{VehicleID: vehicleID, Speed: float32(speed), IsHeavy: heavy}
}

// MarshalBinary encodes e as a fixed-size record.
func (e Event) MarshalBinary() ([]byte, error) {
	if len(e.VehicleID) > MaxVehicleIDLen {
		return nil, fmt.Errorf("vehicle id %q exceeds %d bytes", e.VehicleID, MaxVehicleIDLen)
	}
	buf := make([]byte, RecordSize)
	copy(buf, e.VehicleID)
	binary.LittleEndian.PutUint32(buf[MaxVehicleIDLen+1:], math.Float32bits(e.Speed))
	if e.IsHeavy {
		buf[RecordSize-1] = 1
	}
	return buf, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (e *Event) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrShortRecord, len(data), RecordSize)
	}
	id := data[:MaxVehicleIDLen+1]
	n := 0
	for n < len(id) && id[n] != 0 {
		n++
	}
	e.VehicleID = string(id[:n])
	e.Speed = math.Float32frombits(binary.LittleEndian.Uint32(data[MaxVehicleIDLen+1:]))
	e.IsHeavy = data[RecordSize-1] != 0
	return nil
}
