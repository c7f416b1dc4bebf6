// Package daemon wires the lines, the protocol listener, the dispatch guard
// and the external command channels into one runnable unit.
package daemon

import (
	"context"
	"io"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/ardctl/pkg/bossa"
	"github.com/robotalks/ardctl/pkg/comm/mqtt"
	"github.com/robotalks/ardctl/pkg/comm/websocket"
	"github.com/robotalks/ardctl/pkg/config"
	"github.com/robotalks/ardctl/pkg/dispatch"
	fx "github.com/robotalks/ardctl/pkg/framework"
	"github.com/robotalks/ardctl/pkg/inject"
	"github.com/robotalks/ardctl/pkg/metrics"
	"github.com/robotalks/ardctl/pkg/pins"
	"github.com/robotalks/ardctl/pkg/sequencer"
	"github.com/robotalks/ardctl/pkg/serialgate"
)

// simPadConfig is the pad value the in-memory registers start with.
const simPadConfig uint32 = 0x1b0b1

type namedCloser struct {
	name string
	io.Closer
}

// Daemon is the assembled service.
type Daemon struct {
	Config *config.Config

	// Recorder is set when lines are simulated.
	Recorder  *pins.Recorder
	Lines     *pins.Set
	Registers serialgate.Registers

	Sequencer *sequencer.Sequencer
	Gate      *serialgate.Gate
	Guard     *dispatch.Guard
	Listener  *bossa.Listener
	Injector  *inject.Injector
	Metrics   *metrics.Collector
	MQTT      *mqtt.Endpoint
	HTTP      *http.Server

	closers []namedCloser
}

// New acquires the lines and registers and builds the components. Failing
// to acquire any line aborts.
func New(conf *config.Config) (d *Daemon, err error) {
	d = &Daemon{Config: conf, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			d.Close()
			d = nil
		}
	}()

	if conf.Simulate {
		d.Recorder = &pins.Recorder{RealTime: true, Verbose: true, Keep: 256}
		d.Lines = d.Recorder.SetFor(conf.Pins)
	} else if d.Lines, err = pins.Open(conf.Pins); err != nil {
		return
	}
	d.closers = append(d.closers, namedCloser{"lines", d.Lines})

	if conf.Simulate || !conf.Serial.Gate {
		d.Registers = serialgate.NewMemory(map[uintptr]uint32{
			serialgate.OffsetTX: simPadConfig,
			serialgate.OffsetRX: simPadConfig,
		})
	} else {
		regs, mapErr := serialgate.MapPhys(conf.Serial.PadBase, serialgate.WindowSize)
		if mapErr != nil {
			err = mapErr
			return
		}
		d.Registers = regs
		d.closers = append(d.closers, namedCloser{"serial registers", regs})
	}

	d.Sequencer = sequencer.New(d.Lines.Erase, d.Lines.Reset)
	if d.Recorder != nil {
		d.Sequencer.Sleep = d.Recorder.Sleep
	}
	if err = d.Sequencer.Setup(); err != nil {
		return
	}
	d.Gate = serialgate.New(d.Registers)
	d.Guard = dispatch.NewGuard(d.Sequencer, d.Gate)
	d.Injector = inject.New(d.Guard)
	d.Listener = bossa.NewListener(d.Lines.Clock, d.Lines.Data, d.Guard)

	observers := dispatch.Observers{d.Metrics}
	frameHandlers := []bossa.FrameHandler{d.Metrics.ObserveFrame}
	if conf.MQTTBrokerURL != "" {
		meta := mqtt.Meta{
			Description: conf.Description,
			Pins:        conf.PinNames(),
		}
		for _, action := range dispatch.Actions {
			meta.Commands = append(meta.Commands, string(action))
		}
		if d.MQTT, err = mqtt.NewEndpoint(conf.MQTTBrokerURL, conf.ID, meta, d.Injector); err != nil {
			return
		}
		observers = append(observers, d.MQTT)
		frameHandlers = append(frameHandlers, d.MQTT.ObserveFrame)
	}
	d.Guard.Observer = observers
	d.Listener.OnFrame = func(f bossa.Frame) {
		for _, h := range frameHandlers {
			h(f)
		}
	}

	if conf.HTTPAddr != "" {
		d.HTTP = &http.Server{Addr: conf.HTTPAddr, Handler: d.Handler()}
	}
	return
}

// Handler serves /metrics and the websocket command endpoint /cmd.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.Metrics.Handler())
	mux.Handle("/cmd", websocket.NewHandler(d.Injector))
	return mux
}

// Runnables returns the components to run.
func (d *Daemon) Runnables() []fx.Runnable {
	runnables := []fx.Runnable{d.Guard, d.Listener}
	if d.MQTT != nil {
		runnables = append(runnables, d.MQTT)
	}
	if d.HTTP != nil {
		runnables = append(runnables, fx.NamedRun("http", fx.RunFunc(d.serveHTTP)))
	}
	return runnables
}

// Run runs all components until ctx is canceled or one of them fails, then
// releases the lines.
func (d *Daemon) Run(ctx context.Context) error {
	glog.Infof("ardctld %s: clock=%s data=%s erase=%s reset=%s",
		d.Config.ID, d.Lines.Clock, d.Lines.Data, d.Lines.Erase, d.Lines.Reset)
	err := fx.NewRunnerWith(ctx).Go(d.Runnables()...).Wait()
	if closeErr := d.Close(); closeErr != nil {
		glog.Errorf("release: %v", closeErr)
	}
	return err
}

// Close releases the lines and registers.
func (d *Daemon) Close() error {
	var errs fx.AggregatedError
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs.AddFrom(d.closers[i].name, d.closers[i].Close())
	}
	d.closers = nil
	return errs.Aggregate()
}

func (d *Daemon) serveHTTP(ctx context.Context) error {
	glog.Infof("http listening on %s", d.HTTP.Addr)
	err := fx.RunWithContextCloser(ctx, d.HTTP, d.HTTP.ListenAndServe)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
