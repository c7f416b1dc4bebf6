// Package sequencer drives the erase and reset lines of the target
// microcontroller with the fixed timing its bootloader expects.
package sequencer

import (
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/ardctl/pkg/pins"
)

// Timing of the erase and reset sequence. These are hardware requirements of
// the target bootloader and must not be tuned.
const (
	SettleDelay     = 1 * time.Millisecond
	ErasePulse      = 300 * time.Millisecond
	EraseReleaseGap = 10 * time.Millisecond
	ResetPulse      = 80 * time.Millisecond

	// SequenceDuration is the total time EraseAndReset sleeps.
	SequenceDuration = SettleDelay + ErasePulse + EraseReleaseGap + ResetPulse
)

// Sequencer runs pulse sequences on the erase and reset lines. It sleeps and
// must not be called from the goroutine sampling the clock line.
type Sequencer struct {
	Erase pins.Output
	Reset pins.Output
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

// New creates a Sequencer.
func New(erase, reset pins.Output) *Sequencer {
	return &Sequencer{Erase: erase, Reset: reset, Sleep: time.Sleep}
}

// Setup puts the lines into their idle state: erase floating, reset
// released (high).
func (s *Sequencer) Setup() error {
	if err := s.Erase.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return &pins.PinError{Role: pins.RoleErase, Name: s.Erase.String(), Err: err}
	}
	if err := s.Reset.Out(gpio.High); err != nil {
		return &pins.PinError{Role: pins.RoleReset, Name: s.Reset.String(), Err: err}
	}
	return nil
}

// EraseAndReset asserts erase while the target is running, then pulses reset
// so the target restarts into its bootloader with an erased flash.
// Line errors are logged and the sequence continues; the first one is
// returned.
func (s *Sequencer) EraseAndReset() error {
	glog.Info("erase and reset started")
	var st step
	st.float(s.Erase, pins.RoleErase)
	st.drive(s.Reset, pins.RoleReset, gpio.High)
	s.sleep(SettleDelay)

	st.drive(s.Erase, pins.RoleErase, gpio.High)
	s.sleep(ErasePulse)
	st.float(s.Erase, pins.RoleErase)

	s.sleep(EraseReleaseGap)
	st.drive(s.Reset, pins.RoleReset, gpio.Low)

	s.sleep(ResetPulse)
	st.drive(s.Reset, pins.RoleReset, gpio.High)
	glog.Info("erase and reset executed")
	return st.err
}

// ShutdownOnly holds the target in reset.
func (s *Sequencer) ShutdownOnly() error {
	glog.Info("holding target in reset")
	var st step
	st.drive(s.Reset, pins.RoleReset, gpio.Low)
	return st.err
}

func (s *Sequencer) sleep(d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(d)
	} else {
		time.Sleep(d)
	}
}

// step collects the first line error of a sequence.
type step struct {
	err error
}

func (s *step) drive(line pins.Output, role pins.Role, l gpio.Level) {
	s.check(line, role, line.Out(l))
}

func (s *step) float(line pins.Output, role pins.Role) {
	s.check(line, role, line.In(gpio.PullNoChange, gpio.NoEdge))
}

func (s *step) check(line pins.Output, role pins.Role, err error) {
	if err == nil {
		return
	}
	glog.Errorf("%s line %s: %v", role, line, err)
	if s.err == nil {
		s.err = &pins.PinError{Role: role, Name: line.String(), Err: err}
	}
}
