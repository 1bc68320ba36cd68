package vehicle

import "fmt"

// Direction identifies the approach a vehicle enters the intersection from.
// The numeric order is the signal cycle order.
type Direction int

const (
	North Direction = iota
	West
	South
	East
)

// NumDirections is the number of approaches at the intersection.
const NumDirections = 4

// Directions lists every approach in signal cycle order.
var Directions = [NumDirections]Direction{North, West, South, East}

var directionNames = [NumDirections]string{"NORTH", "WEST", "SOUTH", "EAST"}

// Next returns the approach that follows d in the cycle N→W→S→E→N.
func (d Direction) Next() Direction { return (d + 1) % NumDirections }

// Valid reports whether d names one of the four approaches.
func (d Direction) Valid() bool { return d >= North && d <= East }

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// MarshalText encodes the direction by name so snapshots read naturally.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(directionNames[d]), nil
}

// UnmarshalText parses a direction name as produced by MarshalText.
func (d *Direction) UnmarshalText(text []byte) error {
	for i, name := range directionNames {
		if name == string(text) {
			*d = Direction(i)
			return nil
		}
	}
	return fmt.Errorf("unknown direction %q", text)
}

// Lane is one of the two parallel lanes of an approach. Lane 1 is the inner
// lane; lane 2 is the outer lane and the only one heavy vehicles may use.
type Lane int

const (
	Lane1 Lane = 1
	Lane2 Lane = 2
)

// Lanes lists both lanes of an approach.
var Lanes = [2]Lane{Lane1, Lane2}

// Index returns the zero-based slot for l.
func (l Lane) Index() int { return int(l) - 1 }

// Valid reports whether l is lane 1 or lane 2.
func (l Lane) Valid() bool { return l == Lane1 || l == Lane2 }
