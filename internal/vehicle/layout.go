package vehicle

// Canvas and intersection dimensions, in pixels. Progress along an approach
// is measured from the approach's spawn point in the direction of travel.
const (
	CanvasWidth  = 836.0
	CanvasHeight = 896.0

	centerX = CanvasWidth / 2
	centerY = CanvasHeight / 2

	boxLeft   = 358.0
	boxTop    = 391.0
	boxWidth  = 122.0
	boxHeight = 113.0

	laneWidth         = 26.0
	innerLaneOffset   = laneWidth/2 + 4
	outerLaneOffset   = laneWidth*1.5 + 4
	exitMargin        = 50.0
	StopBuffer        = 20.0
	SpawnSafeDistance = 100.0
)

// Coordinate is a 2D canvas position in pixels.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Approach is the fixed geometry of one inbound road.
type Approach struct {
	Spawn    Coordinate // centre of the road where vehicles enter
	Heading  Coordinate // unit vector of travel
	Offset   Coordinate // unit vector lane offsets are applied along
	StopLine float64    // progress at which the intersection box begins
	BoxDepth float64    // extent of the box along the direction of travel
	Exit     float64    // progress past which a vehicle has left the canvas
}

var approaches = [NumDirections]Approach{
	North: {
		Spawn:    Coordinate{X: centerX, Y: 0},
		Heading:  Coordinate{X: 0, Y: 1},
		Offset:   Coordinate{X: 1, Y: 0},
		StopLine: boxTop,
		BoxDepth: boxHeight,
		Exit:     CanvasHeight + exitMargin,
	},
	West: {
		Spawn:    Coordinate{X: 0, Y: centerY},
		Heading:  Coordinate{X: 1, Y: 0},
		Offset:   Coordinate{X: 0, Y: -1},
		StopLine: boxLeft,
		BoxDepth: boxWidth,
		Exit:     CanvasWidth + exitMargin,
	},
	South: {
		Spawn:    Coordinate{X: centerX, Y: CanvasHeight},
		Heading:  Coordinate{X: 0, Y: -1},
		Offset:   Coordinate{X: -1, Y: 0},
		StopLine: CanvasHeight - (boxTop + boxHeight),
		BoxDepth: boxHeight,
		Exit:     CanvasHeight + exitMargin,
	},
	East: {
		Spawn:    Coordinate{X: CanvasWidth, Y: centerY},
		Heading:  Coordinate{X: -1, Y: 0},
		Offset:   Coordinate{X: 0, Y: 1},
		StopLine: CanvasWidth - (boxLeft + boxWidth),
		BoxDepth: boxWidth,
		Exit:     CanvasWidth + exitMargin,
	},
}

// Approach returns the geometry of d.
func (d Direction) Approach() Approach { return approaches[d] }

// Point converts progress along the approach into a canvas coordinate.
func (a Approach) Point(lane Lane, progress float64) Coordinate {
	off := innerLaneOffset
	if lane == Lane2 {
		off = outerLaneOffset
	}
	return Coordinate{
		X: a.Spawn.X + a.Heading.X*progress + a.Offset.X*off,
		Y: a.Spawn.Y + a.Heading.Y*progress + a.Offset.Y*off,
	}
}

// AtStopLine reports whether progress lies in the buffer zone immediately
// before the intersection box, where a red light holds traffic.
func (a Approach) AtStopLine(progress float64) bool {
	return progress > a.StopLine-StopBuffer && progress <= a.StopLine
}

// Exited reports whether progress lies outside the simulated area.
func (a Approach) Exited(progress float64) bool {
	return progress > a.Exit || progress < -exitMargin
}
