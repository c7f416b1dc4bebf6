package pins

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

func TestAssignmentValidate(t *testing.T) {
	full := Assignment{Clock: "GPIO16", Data: "GPIO17", Erase: "GPIO0", Reset: "GPIO1"}
	require.NoError(t, full.Validate())

	cases := []struct {
		role Role
		a    Assignment
	}{
		{RoleClock, Assignment{Data: "GPIO17", Erase: "GPIO0", Reset: "GPIO1"}},
		{RoleData, Assignment{Clock: "GPIO16", Erase: "GPIO0", Reset: "GPIO1"}},
		{RoleErase, Assignment{Clock: "GPIO16", Data: "GPIO17", Reset: "GPIO1"}},
		{RoleReset, Assignment{Clock: "GPIO16", Data: "GPIO17", Erase: "GPIO0"}},
	}
	for _, c := range cases {
		t.Run(string(c.role), func(t *testing.T) {
			err := c.a.Validate()
			require.Equal(t, &PinError{Role: c.role, Err: ErrMissingPin}, err)
			require.True(t, errors.Is(err, ErrMissingPin))
		})
	}
}

func TestPinErrorMessage(t *testing.T) {
	require.Equal(t, "reset pin: pin not assigned", (&PinError{Role: RoleReset, Err: ErrMissingPin}).Error())
	require.Equal(t, `clock pin "GPIO99": no such pin`, (&PinError{Role: RoleClock, Name: "GPIO99", Err: ErrNotFound}).Error())
}

func TestWithRoleNames(t *testing.T) {
	require.Equal(t,
		Assignment{Clock: "clock", Data: "GPIO17", Erase: "erase", Reset: "reset"},
		Assignment{Data: "GPIO17"}.WithRoleNames())
}

func TestSimPinRecords(t *testing.T) {
	rec := NewRecorder()
	set := rec.SetFor(Assignment{Clock: "clk", Data: "dat", Erase: "GPIO0", Reset: "GPIO1"})
	require.NoError(t, set.Erase.In(gpio.PullNoChange, gpio.NoEdge))
	require.NoError(t, set.Reset.Out(gpio.High))
	rec.Sleep(time.Millisecond)
	require.NoError(t, set.Reset.Out(gpio.Low))
	require.Equal(t, []string{"GPIO0 input", "GPIO1 high", "sleep 1ms", "GPIO1 low"}, rec.Log())
	require.False(t, set.Reset.(*SimPin).IsInput())
	require.True(t, set.Erase.(*SimPin).IsInput())
	require.NoError(t, set.Close())

	rec.Clear()
	require.Empty(t, rec.Log())
}

func TestRecorderKeep(t *testing.T) {
	rec := &Recorder{Keep: 2}
	p := rec.Pin("GPIO1")
	p.Out(gpio.High)
	p.Out(gpio.Low)
	p.Out(gpio.High)
	require.Equal(t, []string{"GPIO1 low", "GPIO1 high"}, rec.Log())
}

func TestSimPinEdges(t *testing.T) {
	rec := NewRecorder()
	p := rec.Pin("clk")
	require.NoError(t, p.In(gpio.PullNoChange, gpio.FallingEdge))
	require.Equal(t, gpio.FallingEdge, p.Edge())
	require.False(t, p.WaitForEdge(time.Millisecond))

	p.Drive(gpio.High)
	require.Equal(t, gpio.High, p.Read())
	go p.Trigger()
	require.True(t, p.WaitForEdge(-1))
	require.Equal(t, []string{"clk input"}, rec.Log())
}

type stuckLine struct {
	*SimPin
}

func (l stuckLine) Close() error {
	return errors.New("device busy")
}

func TestSetCloseNamesFailingLines(t *testing.T) {
	rec := NewRecorder()
	set := rec.Set()
	set.Erase = stuckLine{rec.Pin("GPIO0")}
	set.Reset = stuckLine{rec.Pin("GPIO1")}
	err := set.Close()
	require.EqualError(t, err, `2 failures: erase pin "GPIO0": device busy; reset pin "GPIO1": device busy`)
	var pinErr *PinError
	require.ErrorAs(t, err, &pinErr)
	require.Equal(t, RoleErase, pinErr.Role)
}
