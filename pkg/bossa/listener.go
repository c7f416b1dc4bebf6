package bossa

import (
	"context"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/ardctl/pkg/dispatch"
	"github.com/robotalks/ardctl/pkg/pins"
)

// DefaultEdgeTimeout bounds each wait for a clock edge so the listener
// notices cancellation.
const DefaultEdgeTimeout = 100 * time.Millisecond

// Requester receives decoded frames.
type Requester interface {
	RequestErase(dispatch.Source) bool
	RequestSerialEnable(dispatch.Source)
}

// FrameHandler is notified of every complete frame.
type FrameHandler func(Frame)

// Listener samples the data line on every falling edge of the clock line.
// Its goroutine is the only writer of the decoder state and never blocks
// on anything but the clock line.
type Listener struct {
	Clock       pins.EdgeInput
	Data        pins.Input
	Decoder     *Decoder
	Requester   Requester
	OnFrame     FrameHandler
	EdgeTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewListener creates a Listener.
func NewListener(clock pins.EdgeInput, data pins.Input, req Requester) *Listener {
	return &Listener{
		Clock:       clock,
		Data:        data,
		Decoder:     NewDecoder(),
		Requester:   req,
		EdgeTimeout: DefaultEdgeTimeout,
		Now:         time.Now,
	}
}

// Name implements Named.
func (l *Listener) Name() string {
	return "bossa"
}

// Run implements Runnable.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.Clock.In(gpio.PullNoChange, gpio.FallingEdge); err != nil {
		return &pins.PinError{Role: pins.RoleClock, Name: l.Clock.String(), Err: err}
	}
	defer func() {
		if err := l.Clock.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			glog.Errorf("disarm clock %s: %v", l.Clock, err)
		}
	}()
	glog.Infof("listening for requests on clock %s data %s", l.Clock, l.Data)

	timeout := l.EdgeTimeout
	if timeout <= 0 {
		timeout = DefaultEdgeTimeout
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if l.Clock.WaitForEdge(timeout) {
			l.Sample()
		}
	}
}

// Sample reads the data line once and acts on a completed frame.
func (l *Listener) Sample() Frame {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	frame := l.Decoder.Feed(l.Data.Read(), now())
	if !frame.Complete() {
		return frame
	}
	glog.V(1).Infof("received command %#x", frame.Command)
	if h := l.OnFrame; h != nil {
		h(frame)
	}
	if frame.IsErase() {
		l.Requester.RequestErase(dispatch.SourceBitstream)
	} else {
		l.Requester.RequestSerialEnable(dispatch.SourceBitstream)
	}
	return frame
}
