// Package pins resolves and describes the four GPIO lines shared with the
// companion microcontroller: the programming clock/data pair driven by the
// host-side flasher, and the erase/reset lines of the target.
package pins

import (
	"errors"
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3/gpio"

	fx "github.com/robotalks/ardctl/pkg/framework"
)

// Input is a line that can be sampled.
type Input interface {
	fmt.Stringer
	Read() gpio.Level
}

// EdgeInput is an input line able to block until an edge is detected.
type EdgeInput interface {
	Input
	In(pull gpio.Pull, edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) bool
}

// Output is a line that is either driven or left floating as input.
type Output interface {
	fmt.Stringer
	In(pull gpio.Pull, edge gpio.Edge) error
	Out(l gpio.Level) error
}

// Role names a line by its function.
type Role string

// Roles
const (
	RoleClock Role = "clock"
	RoleData  Role = "data"
	RoleErase Role = "erase"
	RoleReset Role = "reset"
)

// ErrMissingPin indicates a line has no pin assigned.
var ErrMissingPin = errors.New("pin not assigned")

// PinError reports a line which could not be resolved or configured.
type PinError struct {
	Role Role
	Name string
	Err  error
}

// Error implements error.
func (e *PinError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s pin: %v", e.Role, e.Err)
	}
	return fmt.Sprintf("%s pin %q: %v", e.Role, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *PinError) Unwrap() error {
	return e.Err
}

// Assignment maps each role to a pin name, e.g. "GPIO16".
type Assignment struct {
	Clock string `toml:"clock"`
	Data  string `toml:"data"`
	Erase string `toml:"erase"`
	Reset string `toml:"reset"`
}

// Names returns the assigned names in role order.
func (a Assignment) Names() map[Role]string {
	return map[Role]string{
		RoleClock: a.Clock,
		RoleData:  a.Data,
		RoleErase: a.Erase,
		RoleReset: a.Reset,
	}
}

// Validate checks all four lines are assigned.
func (a Assignment) Validate() error {
	for _, role := range []Role{RoleClock, RoleData, RoleErase, RoleReset} {
		if a.Names()[role] == "" {
			return &PinError{Role: role, Err: ErrMissingPin}
		}
	}
	return nil
}

// WithRoleNames fills unassigned lines with their role names.
func (a Assignment) WithRoleNames() Assignment {
	fill := func(name *string, role Role) {
		if *name == "" {
			*name = string(role)
		}
	}
	fill(&a.Clock, RoleClock)
	fill(&a.Data, RoleData)
	fill(&a.Erase, RoleErase)
	fill(&a.Reset, RoleReset)
	return a
}

// Set is the resolved group of lines.
type Set struct {
	Clock EdgeInput
	Data  Input
	Erase Output
	Reset Output
}

// Close releases the lines which support it.
func (s *Set) Close() error {
	var errs fx.AggregatedError
	lines := []struct {
		role Role
		line fmt.Stringer
	}{
		{RoleClock, s.Clock},
		{RoleData, s.Data},
		{RoleErase, s.Erase},
		{RoleReset, s.Reset},
	}
	for _, l := range lines {
		if closer, ok := l.line.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs.Add(&PinError{Role: l.role, Name: l.line.String(), Err: err})
			}
		}
	}
	return errs.Aggregate()
}
