// Package serialgate detaches the pass-through UART from its pads while the
// target is being programmed. The programming pair and the UART pair share
// the same wires; leaving the UART muxed in corrupts both.
package serialgate

import (
	"sync"

	"github.com/golang/glog"
)

// Pad control register layout.
const (
	// PadBase is the physical address of the UART4 TX pad control register
	// on i.MX6 Quad/Dual.
	PadBase uint64 = 0x020E01F8
	// OffsetTX and OffsetRX are register offsets from PadBase.
	OffsetTX uintptr = 0x0
	OffsetRX uintptr = 0x4
	// WindowSize covers both registers.
	WindowSize = 8

	// DisabledPadConfig muxes the pads away from the UART.
	DisabledPadConfig uint32 = 0x15
)

// Registers gives 32-bit access to the pad control window.
type Registers interface {
	Read32(off uintptr) uint32
	Write32(off uintptr, val uint32)
}

// State of the gate.
type State int

// States
const (
	Enabled State = iota
	Disabled
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == Disabled {
		return "disabled"
	}
	return "enabled"
}

// Gate saves and restores the pad configuration. The saved values are only
// held while Disabled, so repeated calls never overwrite them.
type Gate struct {
	regs  Registers
	state State
	savTX uint32
	savRX uint32
	lock  sync.Mutex
}

// New creates a Gate in the Enabled state.
func New(regs Registers) *Gate {
	return &Gate{regs: regs}
}

// State returns the current state.
func (g *Gate) State() State {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.state
}

// Disable saves the pad configuration and detaches the UART.
// It returns false if the gate was already disabled.
func (g *Gate) Disable() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.state == Disabled {
		glog.V(1).Info("serial port already disabled")
		return false
	}
	glog.Info("disable serial port")
	g.savTX, g.savRX = g.regs.Read32(OffsetTX), g.regs.Read32(OffsetRX)
	g.regs.Write32(OffsetTX, DisabledPadConfig)
	g.regs.Write32(OffsetRX, DisabledPadConfig)
	g.state = Disabled
	return true
}

// Enable restores the saved pad configuration.
// It returns false if the gate was already enabled.
func (g *Gate) Enable() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.state == Enabled {
		glog.V(1).Info("serial port already enabled")
		return false
	}
	glog.Info("enable serial port")
	g.regs.Write32(OffsetTX, g.savTX)
	g.regs.Write32(OffsetRX, g.savRX)
	g.savTX, g.savRX = 0, 0
	g.state = Enabled
	return true
}
