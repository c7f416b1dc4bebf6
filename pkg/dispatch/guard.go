// Package dispatch serializes hardware actions requested by the bitstream
// decoder and by injected commands.
//
// Erase and shutdown both take the single sequencing lock, so the two entry
// points can never overlap pulse sequences. The lock is an atomic flag: the
// decoder goroutine must never block on it.
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultQuiescence is how long erase requests stay suppressed after an
// erase sequence completed.
const DefaultQuiescence = 10 * time.Second

// Sequencer runs pulse sequences on the target.
type Sequencer interface {
	EraseAndReset() error
	ShutdownOnly() error
}

// Gate detaches and reattaches the pass-through UART.
type Gate interface {
	Disable() bool
	Enable() bool
}

// Guard owns the sequencing lock and the background worker.
type Guard struct {
	Sequencer  Sequencer
	Gate       Gate
	Quiescence time.Duration
	Observer   Observer

	busy  atomic.Bool
	reqCh chan Source
}

// NewGuard creates a Guard.
func NewGuard(seq Sequencer, gate Gate) *Guard {
	return &Guard{
		Sequencer:  seq,
		Gate:       gate,
		Quiescence: DefaultQuiescence,
		reqCh:      make(chan Source, 1),
	}
}

// Name implements Named.
func (g *Guard) Name() string {
	return "dispatch"
}

// Busy reports whether a sequence holds the lock.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}

// RequestErase schedules an erase and reset on the worker. It never blocks;
// a request while another operation is in flight is dropped and false is
// returned.
func (g *Guard) RequestErase(src Source) bool {
	if !g.busy.CompareAndSwap(false, true) {
		glog.V(2).Infof("erase from %s dropped: operation in progress", src)
		g.report(ActionErase, PhaseDropped, src)
		return false
	}
	// The lock is only released after the worker took the previous request,
	// so the slot is always free here.
	g.reqCh <- src
	return true
}

// RequestShutdown holds the target in reset, synchronously. It takes the
// same sequencing lock as RequestErase, so it is dropped while an erase
// sequence runs and for the whole quiescent period that follows it. The
// lock is released as soon as the reset line is driven; a shutdown starts no
// quiescent period of its own.
func (g *Guard) RequestShutdown(src Source) bool {
	if !g.busy.CompareAndSwap(false, true) {
		glog.V(2).Infof("shutdown from %s dropped: operation in progress", src)
		g.report(ActionShutdown, PhaseDropped, src)
		return false
	}
	defer g.busy.Store(false)
	g.report(ActionShutdown, PhaseStarted, src)
	if err := g.Sequencer.ShutdownOnly(); err != nil {
		glog.Errorf("shutdown: %v", err)
	}
	g.report(ActionShutdown, PhaseCompleted, src)
	return true
}

// RequestSerialEnable reattaches the UART.
func (g *Guard) RequestSerialEnable(src Source) {
	g.reportGate(ActionSerialOn, src, g.Gate.Enable())
}

// RequestSerialDisable detaches the UART.
func (g *Guard) RequestSerialDisable(src Source) {
	g.reportGate(ActionSerialOff, src, g.Gate.Disable())
}

// Run implements Runnable. It executes erase requests one at a time.
func (g *Guard) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case src := <-g.reqCh:
			g.eraseAndReset(ctx, src)
		}
	}
}

func (g *Guard) eraseAndReset(ctx context.Context, src Source) {
	defer g.busy.Store(false)
	g.report(ActionErase, PhaseStarted, src)
	g.RequestSerialDisable(src)
	if err := g.Sequencer.EraseAndReset(); err != nil {
		glog.Errorf("erase and reset: %v", err)
	}
	g.report(ActionErase, PhaseCompleted, src)

	if g.Quiescence <= 0 {
		return
	}
	timer := time.NewTimer(g.Quiescence)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (g *Guard) reportGate(action Action, src Source, changed bool) {
	phase := PhaseCompleted
	if !changed {
		phase = PhaseIgnored
	}
	g.report(action, phase, src)
}

func (g *Guard) report(action Action, phase Phase, src Source) {
	if ob := g.Observer; ob != nil {
		ob.Observe(Event{Action: action, Phase: phase, Source: src, Time: time.Now()})
	}
}
