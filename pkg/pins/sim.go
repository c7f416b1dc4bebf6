package pins

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
)

// Recorder keeps an ordered log of line transitions and sleeps.
// It backs the simulated lines used for dry runs and tests.
type Recorder struct {
	// RealTime makes Sleep block for the requested duration.
	RealTime bool
	// Verbose logs each entry as it is recorded.
	Verbose bool
	// Keep bounds the log to the most recent entries, 0 keeps all.
	Keep int

	log  []string
	lock sync.Mutex
}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(entry string) {
	r.lock.Lock()
	r.log = append(r.log, entry)
	if r.Keep > 0 && len(r.log) > r.Keep {
		r.log = append(r.log[:0], r.log[len(r.log)-r.Keep:]...)
	}
	r.lock.Unlock()
	if r.Verbose {
		glog.Infof("sim: %s", entry)
	}
}

// Log returns a copy of recorded entries.
func (r *Recorder) Log() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.log...)
}

// Clear drops all recorded entries.
func (r *Recorder) Clear() {
	r.lock.Lock()
	r.log = nil
	r.lock.Unlock()
}

// Sleep records a delay.
func (r *Recorder) Sleep(d time.Duration) {
	r.record("sleep " + d.String())
	if r.RealTime {
		time.Sleep(d)
	}
}

// Pin creates a simulated line logging into the recorder.
func (r *Recorder) Pin(name string) *SimPin {
	return &SimPin{name: name, rec: r, input: true, edges: make(chan struct{})}
}

// Set creates a simulated set of lines named after their roles.
func (r *Recorder) Set() *Set {
	return r.SetFor(Assignment{}.WithRoleNames())
}

// SetFor creates a simulated set of lines with the assigned names.
func (r *Recorder) SetFor(a Assignment) *Set {
	return &Set{
		Clock: r.Pin(a.Clock),
		Data:  r.Pin(a.Data),
		Erase: r.Pin(a.Erase),
		Reset: r.Pin(a.Reset),
	}
}

// SimPin is an in-memory line.
type SimPin struct {
	name  string
	rec   *Recorder
	level gpio.Level
	input bool
	edge  gpio.Edge
	lock  sync.Mutex
	edges chan struct{}
}

// String implements fmt.Stringer.
func (p *SimPin) String() string {
	return p.name
}

// In implements Output and EdgeInput.
func (p *SimPin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.lock.Lock()
	p.input, p.edge = true, edge
	p.lock.Unlock()
	p.rec.record(p.name + " input")
	return nil
}

// Out implements Output.
func (p *SimPin) Out(l gpio.Level) error {
	p.lock.Lock()
	p.input, p.level = false, l
	p.lock.Unlock()
	p.rec.record(fmt.Sprintf("%s %s", p.name, levelName(l)))
	return nil
}

// Read implements Input.
func (p *SimPin) Read() gpio.Level {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.level
}

// IsInput reports whether the line is floating.
func (p *SimPin) IsInput() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.input
}

// Drive sets the level seen by readers without recording it, as an external
// device driving the line would.
func (p *SimPin) Drive(l gpio.Level) {
	p.lock.Lock()
	p.level = l
	p.lock.Unlock()
}

// Trigger delivers one edge to a goroutine blocked in WaitForEdge.
// It blocks until the edge is consumed.
func (p *SimPin) Trigger() {
	p.edges <- struct{}{}
}

// Edge returns the edge detection armed by In.
func (p *SimPin) Edge() gpio.Edge {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.edge
}

// WaitForEdge implements EdgeInput. A negative timeout waits forever.
func (p *SimPin) WaitForEdge(timeout time.Duration) bool {
	if timeout < 0 {
		<-p.edges
		return true
	}
	select {
	case <-p.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

func levelName(l gpio.Level) string {
	if l == gpio.High {
		return "high"
	}
	return "low"
}
