// Package bossa decodes the programming request protocol a flasher sends on
// the clock/data line pair before it talks to the target bootloader.
//
// A frame is the 16-bit authentication token followed by a 4-bit command,
// both least-significant bit first, one bit sampled per falling clock edge.
// There is no start symbol: the decoder re-synchronizes through restart on
// mismatch and a reassembly timeout between edges.
package bossa

import (
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
)

// Protocol constants.
const (
	AuthToken    uint16 = 0x5A5A
	AuthBits            = 16
	CommandBits         = 4
	FrameBits           = AuthBits + CommandBits
	CommandErase uint8  = 0x0F

	// ReassemblyTimeout is the longest gap allowed between two edges of
	// the same frame.
	ReassemblyTimeout = 400 * time.Millisecond
)

// Session is the live decoding state.
type Session struct {
	// Step is the cursor in [0, FrameBits].
	Step int
	// Command accumulates the command bits.
	Command uint8
	// LastSample is when the previous edge was processed.
	LastSample time.Time
}

// Frame is the result of feeding one bit.
type Frame struct {
	complete bool
	Command  uint8
}

// Complete indicates a full authenticated frame was received.
func (f Frame) Complete() bool {
	return f.complete
}

// IsErase indicates the frame requests an erase and reset.
func (f Frame) IsErase() bool {
	return f.complete && f.Command == CommandErase
}

// Decoder runs the frame state machine. It is not safe for concurrent use;
// a single goroutine sampling the clock line owns it.
type Decoder struct {
	Session Session
}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed processes one sampled data bit at time now.
func (d *Decoder) Feed(bit gpio.Level, now time.Time) Frame {
	s := &d.Session
	if now.Sub(s.LastSample) > ReassemblyTimeout {
		if s.Step != 0 && glog.V(4) {
			glog.Infof("bossa: reassembly timeout at step %d", s.Step)
		}
		s.Step, s.Command = 0, 0
	}
	s.LastSample = now

	var b uint8
	if bit == gpio.High {
		b = 1
	}
	if glog.V(4) {
		glog.Infof("bossa: step %d -> %d", s.Step, b)
	}

	if s.Step < AuthBits {
		if expected := uint8(AuthToken>>uint(s.Step)) & 1; b == expected {
			s.Step++
		} else {
			s.Step = 0
		}
	} else {
		s.Command |= b << uint(s.Step-AuthBits)
		s.Step++
	}

	if s.Step < FrameBits {
		return Frame{}
	}
	frame := Frame{complete: true, Command: s.Command}
	s.Step, s.Command = 0, 0
	return frame
}
