package dispatch

import "time"

// Action names a hardware action. The values double as the literal command
// tokens of the injection channel.
type Action string

// Actions
const (
	ActionErase     Action = "erase"
	ActionShutdown  Action = "shutdown"
	ActionSerialOff Action = "uartoff"
	ActionSerialOn  Action = "uarton"
)

// Actions lists all known actions.
var Actions = []Action{ActionErase, ActionShutdown, ActionSerialOff, ActionSerialOn}

// Source tells where a request came from.
type Source string

// Sources
const (
	SourceBitstream Source = "bitstream"
	SourceInject    Source = "inject"
)

// Phase of an action.
type Phase string

// Phases
const (
	PhaseStarted   Phase = "started"
	PhaseCompleted Phase = "completed"
	// PhaseDropped means another operation held the sequencing lock.
	PhaseDropped Phase = "dropped"
	// PhaseIgnored means the action had nothing to do.
	PhaseIgnored Phase = "ignored"
)

// Event reports what the guard did.
type Event struct {
	Action Action
	Phase  Phase
	Source Source
	Time   time.Time
}

// Observer receives events. It is called synchronously and must not block.
type Observer interface {
	Observe(Event)
}

// ObserveFunc is the func form of Observer.
type ObserveFunc func(Event)

// Observe implements Observer.
func (f ObserveFunc) Observe(ev Event) {
	f(ev)
}

// Observers fans out events.
type Observers []Observer

// Observe implements Observer.
func (o Observers) Observe(ev Event) {
	for _, ob := range o {
		ob.Observe(ev)
	}
}
