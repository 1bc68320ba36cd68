package vehicle

import (
	"encoding/json"
	"testing"

	"github.com/cxd309/intersection-sim/internal/kinematics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRand struct {
	f float64
	n int
}

func (s stubRand) Float64() float64 { return s.f }
func (s stubRand) Intn(n int) int   { return s.n % n }

func TestDirectionCycle(t *testing.T) {
	assert.Equal(t, West, North.Next())
	assert.Equal(t, South, West.Next())
	assert.Equal(t, East, South.Next())
	assert.Equal(t, North, East.Next())
	assert.Equal(t, "EAST", East.String())
	assert.Equal(t, "Direction(7)", Direction(7).String())
}

func TestDirectionText(t *testing.T) {
	b, err := json.Marshal(map[string]Direction{"d": South})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"SOUTH"}`, string(b))

	var d Direction
	require.NoError(t, d.UnmarshalText([]byte("WEST")))
	assert.Equal(t, West, d)
	assert.Error(t, d.UnmarshalText([]byte("UP")))
}

func TestClassProperties(t *testing.T) {
	assert.Equal(t, 60.0, ClassLight.MaxSpeed())
	assert.Equal(t, 40.0, ClassHeavy.MaxSpeed())
	assert.Equal(t, 80.0, ClassEmergency.MaxSpeed())
	assert.Greater(t, ClassEmergency.Priority(), ClassHeavy.Priority())
	assert.Greater(t, ClassHeavy.Priority(), ClassLight.Priority())
	assert.False(t, Class("Bus").Valid())
}

func TestInitialSpeedRanges(t *testing.T) {
	for _, n := range []int{0, 20} {
		r := stubRand{n: n}
		assert.Equal(t, float64(40+n), InitialSpeed(ClassLight, r))
		assert.Equal(t, float64(20+n), InitialSpeed(ClassHeavy, r))
		assert.Equal(t, float64(60+n), InitialSpeed(ClassEmergency, r))
	}
}

func TestViolating(t *testing.T) {
	tests := []struct {
		class Class
		speed float64
		want  bool
	}{
		{ClassHeavy, 45, true},
		{ClassHeavy, 40, false},
		{ClassLight, 65, true},
		{ClassLight, 60, false},
		{ClassEmergency, 79, false},
		{ClassEmergency, 96, false},
	}
	for _, tt := range tests {
		v := New("x", tt.class, North, Lane1, tt.speed)
		assert.Equal(t, tt.want, v.Violating(), "%s at %.0f", tt.class, tt.speed)
	}
}

func TestSafeDistance(t *testing.T) {
	light := New("l", ClassLight, North, Lane1, 0)
	heavy := New("h", ClassHeavy, North, Lane2, 0)
	assert.InDelta(t, 60.0, light.SafeDistance(), 1e-9)
	assert.InDelta(t, 90.0, heavy.SafeDistance(), 1e-9)
}

func TestAdvanceHeldAtRed(t *testing.T) {
	v := New("Light1", ClassLight, North, Lane1, 50)
	v.Position = North.Approach().StopLine - 5

	moved := v.Advance(0.016, false, kinematics.DefaultStep, stubRand{f: 0.9})
	assert.False(t, moved)
	assert.Zero(t, v.CurrentSpeed)
	assert.InDelta(t, North.Approach().StopLine-5, v.Position, 1e-9)
}

func TestAdvanceLargeStepStopsAtLineOnRed(t *testing.T) {
	stop := West.Approach().StopLine
	v := New("Light1", ClassLight, West, Lane1, 60)
	v.Position = stop - 28

	moved := v.Advance(0.5, false, kinematics.DefaultStep, stubRand{f: 0.9})
	assert.True(t, moved)
	assert.InDelta(t, stop, v.Position, 1e-9)
	assert.Zero(t, v.CurrentSpeed)
	assert.True(t, v.AtStopLine())

	v.CurrentSpeed = 60
	assert.False(t, v.Advance(0.5, false, kinematics.DefaultStep, stubRand{f: 0.9}))
	assert.InDelta(t, stop, v.Position, 1e-9, "held on the following tick")
}

func TestAdvanceInsideBoxContinuesOnRed(t *testing.T) {
	stop := North.Approach().StopLine
	v := New("Light1", ClassLight, North, Lane1, 60)
	v.Position = stop + 1

	assert.True(t, v.Advance(0.5, false, kinematics.DefaultStep, stubRand{f: 0.9}))
	assert.InDelta(t, stop+31, v.Position, 1e-9)
}

func TestAdvanceEmergencyCrossesLineOnRed(t *testing.T) {
	stop := East.Approach().StopLine
	v := New("Emergency1", ClassEmergency, East, Lane1, 80)
	v.Position = stop - 30

	v.Advance(0.5, false, kinematics.DefaultStep, stubRand{f: 0.9})
	assert.InDelta(t, stop+10, v.Position, 1e-9)
}

func TestAdvanceMovesOnGreen(t *testing.T) {
	v := New("Light1", ClassLight, West, Lane2, 50)
	v.Position = West.Approach().StopLine - 5

	moved := v.Advance(0.5, true, kinematics.DefaultStep, stubRand{f: 0.9})
	assert.True(t, moved)
	assert.InDelta(t, West.Approach().StopLine+20, v.Position, 1e-9)
}

func TestAdvanceEmergencyIgnoresRed(t *testing.T) {
	v := New("Emergency1", ClassEmergency, South, Lane1, 70)
	v.Position = South.Approach().StopLine - 1

	assert.True(t, v.Advance(0.1, false, kinematics.DefaultStep, stubRand{f: 0.9}))
	assert.InDelta(t, 70.0, v.CurrentSpeed, 1e-9)
}

func TestAdvancePeriodicSpeedUpdate(t *testing.T) {
	v := New("Heavy1", ClassHeavy, East, Lane2, 30)
	model := kinematics.DefaultStep

	v.Advance(4.0, true, model, stubRand{f: 0.9})
	assert.InDelta(t, 30.0, v.CurrentSpeed, 1e-9)

	v.Advance(1.0, true, model, stubRand{f: 0.9})
	assert.InDelta(t, 35.0, v.CurrentSpeed, 1e-9)

	v.CurrentSpeed = 40
	v.Advance(5.0, true, model, stubRand{f: 0.01})
	assert.InDelta(t, 48.0, v.CurrentSpeed, 1e-9)
	assert.True(t, v.Violating())
}

func TestApproachGeometry(t *testing.T) {
	n := North.Approach()
	assert.Equal(t, Coordinate{X: 418 + 17, Y: 100}, n.Point(Lane1, 100))
	assert.Equal(t, Coordinate{X: 418 + 43, Y: 100}, n.Point(Lane2, 100))

	e := East.Approach()
	assert.Equal(t, Coordinate{X: 836 - 100, Y: 448 + 17}, e.Point(Lane1, 100))

	assert.True(t, n.AtStopLine(n.StopLine))
	assert.False(t, n.AtStopLine(n.StopLine+1))
	assert.False(t, n.AtStopLine(n.StopLine-StopBuffer))
	assert.True(t, n.Exited(CanvasHeight+51))
	assert.False(t, n.Exited(CanvasHeight))

	for _, d := range Directions {
		a := d.Approach()
		assert.Greater(t, a.StopLine, SpawnSafeDistance, "%s stop line", d)
		assert.Greater(t, a.Exit, a.StopLine+a.BoxDepth, "%s exit", d)
	}
}

func TestSnapshot(t *testing.T) {
	v := New("Light3", ClassLight, West, Lane1, 42)
	v.Position = 10
	v.HasChallan = true
	s := v.Snapshot()
	assert.Equal(t, "Light3", s.ID)
	assert.Equal(t, West, s.Direction)
	assert.Equal(t, Coordinate{X: 10, Y: 448 - 17}, s.Point)
	assert.True(t, s.HasChallan)
	assert.Equal(t, "Heavy7", FormatID(ClassHeavy, 7))
}
