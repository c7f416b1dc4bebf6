package pins

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrNotFound indicates the pin name is unknown to the host drivers.
var ErrNotFound = errors.New("no such pin")

type periphLine struct {
	gpio.PinIO
}

// Close halts any edge detection or PWM on the line.
func (l *periphLine) Close() error {
	return l.PinIO.Halt()
}

// Open resolves the assignment through the periph.io host registry.
// The data line is configured as a plain input here; the clock line is armed
// by whoever waits on it and the target lines by the sequencer.
func Open(a Assignment) (*Set, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	lines := make(map[Role]*periphLine)
	for role, name := range a.Names() {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, &PinError{Role: role, Name: name, Err: ErrNotFound}
		}
		lines[role] = &periphLine{PinIO: p}
	}
	if err := lines[RoleData].In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, &PinError{Role: RoleData, Name: a.Data, Err: err}
	}
	return &Set{
		Clock: lines[RoleClock],
		Data:  lines[RoleData],
		Erase: lines[RoleErase],
		Reset: lines[RoleReset],
	}, nil
}
