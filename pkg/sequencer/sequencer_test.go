package sequencer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/ardctl/pkg/pins"
)

func newTestSequencer() (*Sequencer, *pins.Recorder) {
	rec := pins.NewRecorder()
	s := New(rec.Pin("erase"), rec.Pin("reset"))
	s.Sleep = rec.Sleep
	return s, rec
}

func TestEraseAndReset(t *testing.T) {
	s, rec := newTestSequencer()
	require.NoError(t, s.EraseAndReset())
	require.Equal(t, []string{
		"erase input",
		"reset high",
		"sleep 1ms",
		"erase high",
		"sleep 300ms",
		"erase input",
		"sleep 10ms",
		"reset low",
		"sleep 80ms",
		"reset high",
	}, rec.Log())
	require.Equal(t, 391*time.Millisecond, SequenceDuration)
}

func TestShutdownOnly(t *testing.T) {
	s, rec := newTestSequencer()
	require.NoError(t, s.ShutdownOnly())
	require.Equal(t, []string{"reset low"}, rec.Log())
}

func TestSetup(t *testing.T) {
	s, rec := newTestSequencer()
	require.NoError(t, s.Setup())
	require.Equal(t, []string{"erase input", "reset high"}, rec.Log())
}

type failingLine struct {
	*pins.SimPin
	err error
}

func (l *failingLine) Out(gpio.Level) error { return l.err }

func TestEraseAndResetContinuesOnLineError(t *testing.T) {
	rec := pins.NewRecorder()
	failure := errors.New("line busy")
	s := New(rec.Pin("erase"), &failingLine{SimPin: rec.Pin("reset"), err: failure})
	s.Sleep = rec.Sleep

	err := s.EraseAndReset()
	require.Error(t, err)
	var pinErr *pins.PinError
	require.True(t, errors.As(err, &pinErr))
	require.Equal(t, pins.RoleReset, pinErr.Role)
	require.True(t, errors.Is(err, failure))
	require.Equal(t, []string{
		"erase input",
		"sleep 1ms",
		"erase high",
		"sleep 300ms",
		"erase input",
		"sleep 10ms",
		"sleep 80ms",
	}, rec.Log())
}
