package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ardctl/pkg/bossa"
	"github.com/robotalks/ardctl/pkg/dispatch"
	"github.com/robotalks/ardctl/pkg/msgs"
)

// Topic suffixes under <prefix><id>/.
const (
	TopicCommand = "cmd"
	TopicEvent   = "msg"
	TopicMeta    = "meta"
)

// DefaultEventBacklog is the number of events buffered while the broker is
// slow or unreachable.
const DefaultEventBacklog = 64

// Retry intervals of the initial connection.
const (
	DefaultRetryInterval    = time.Second
	DefaultMaxRetryInterval = 30 * time.Second
)

// Commander accepts a raw command token.
type Commander interface {
	Command(p []byte) error
}

// Meta is published retained on <id>/meta while the daemon is up.
type Meta struct {
	Description string            `json:"description,omitempty"`
	Pins        map[string]string `json:"pins,omitempty"`
	Commands    []string          `json:"commands,omitempty"`
}

// Endpoint connects the daemon to the broker: commands are read from
// <id>/cmd and events published to <id>/msg.
type Endpoint struct {
	Queue     *Queue
	ID        string
	Commander Commander

	// RetryInterval is the first delay between connection attempts, doubled
	// after each failure up to MaxRetryInterval.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration

	metaJSON []byte
	events   chan msgs.Message
}

// NewEndpoint creates an Endpoint.
func NewEndpoint(brokerURL, id string, meta Meta, cmd Commander) (*Endpoint, error) {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+id+"/"+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("ardctl:" + id)
	}
	e := &Endpoint{
		Queue:     NewQueue(opts, topicPrefix),
		ID:        id,
		Commander: cmd,

		RetryInterval:    DefaultRetryInterval,
		MaxRetryInterval: DefaultMaxRetryInterval,

		metaJSON: metaJSON,
		events:   make(chan msgs.Message, DefaultEventBacklog),
	}
	e.Queue.OnConnect = func(*Queue) { e.onConnected() }
	return e, nil
}

// Name implements Named.
func (e *Endpoint) Name() string {
	return "mqtt"
}

// Run implements Runnable. The broker may be down when Run starts; the
// first connection is retried until ctx is done and later losses are left
// to the client's auto-reconnect.
func (e *Endpoint) Run(ctx context.Context) error {
	e.Queue.Sub(e.ID+"/"+TopicCommand, e.handleCommand)
	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		e.connect(ctx)
	}()
	for {
		select {
		case <-ctx.Done():
			<-connDone
			e.disconnect()
			return nil
		case msg := <-e.events:
			e.publish(msg)
		}
	}
}

func (e *Endpoint) connect(ctx context.Context) {
	interval := e.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	for {
		token := e.Queue.Connect()
		for !token.WaitTimeout(100 * time.Millisecond) {
			if ctx.Err() != nil {
				return
			}
		}
		err := token.Error()
		if err == nil {
			return
		}
		glog.Warningf("mqtt connect: %v, retry in %s", err, interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		interval *= 2
		if e.MaxRetryInterval > 0 && interval > e.MaxRetryInterval {
			interval = e.MaxRetryInterval
		}
	}
}

// disconnect clears the retained meta and closes the client. Every wait is
// bounded so a lost broker cannot hold up detach.
func (e *Endpoint) disconnect() {
	if e.Queue.Client.IsConnected() {
		token := e.Queue.PubWith(e.ID+"/"+TopicMeta, nil, 1, true)
		if err := WaitToken(token, DefaultTokenTimeout); err != nil {
			glog.Warningf("mqtt clear meta: %v", err)
		}
	}
	e.Queue.Close()
}

// Observe implements dispatch.Observer. It never blocks; events are dropped
// when the backlog is full.
func (e *Endpoint) Observe(ev dispatch.Event) {
	e.post(msgs.FromEvent(ev))
}

// ObserveFrame publishes a decoded frame.
func (e *Endpoint) ObserveFrame(f bossa.Frame) {
	e.post(msgs.NewFrameEvent(f.Command, time.Now()))
}

func (e *Endpoint) post(msg msgs.Message) {
	select {
	case e.events <- msg:
	default:
		glog.V(2).Infof("mqtt event backlog full, dropped %s", msg)
	}
}

func (e *Endpoint) publish(msg msgs.Message) {
	data, err := msgs.Encode(msg)
	if err != nil {
		glog.Errorf("encode %T: %v", msg, err)
		return
	}
	if !e.Queue.Client.IsConnected() {
		glog.V(2).Infof("mqtt not connected, dropped %s", msg)
		return
	}
	glog.V(2).Infof("PUB %s %s", e.ID+"/"+TopicEvent, msg)
	e.Queue.Pub(e.ID+"/"+TopicEvent, data)
}

func (e *Endpoint) handleCommand(topic string, payload []byte) {
	if err := e.Commander.Command(payload); err != nil {
		glog.Warningf("mqtt command %q: %v", payload, err)
	}
}

func (e *Endpoint) onConnected() {
	e.Queue.PubWith(e.ID+"/"+TopicMeta, e.metaJSON, 1, true)
}
