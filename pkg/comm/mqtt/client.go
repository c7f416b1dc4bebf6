package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ardctl/pkg/msgs"
)

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Device is a daemon found on the broker.
type Device struct {
	ID   string
	Meta Meta
}

// Client talks to daemons through the broker.
type Client struct {
	Queue           *Queue
	DiscoverTimeout time.Duration
}

// NewClient creates a Client and connects it.
func NewClient(brokerURL string) (*Client, error) {
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	token := q.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return &Client{Queue: q, DiscoverTimeout: DefaultDiscoverTimeout}, nil
}

// Close implements io.Closer.
func (c *Client) Close() error {
	return c.Queue.Close()
}

// Send publishes a command token to a daemon.
func (c *Client) Send(id, command string) error {
	return WaitToken(c.Queue.PubWith(id+"/"+TopicCommand, []byte(command), 1, false), DefaultTokenTimeout)
}

// Watch delivers decoded events of a daemon until the returned
// subscription is closed.
func (c *Client) Watch(id string, handler func(msgs.Message)) *Subscription {
	return c.Queue.Sub(id+"/"+TopicEvent, func(topic string, payload []byte) {
		msg, err := msgs.Decode(payload)
		if err != nil {
			glog.Warningf("decode event from %s: %v", topic, err)
			return
		}
		handler(msg)
	})
}

// Discover collects the retained meta of running daemons.
func (c *Client) Discover(ctx context.Context) (res []Device, err error) {
	resCh := make(chan Device, 1)
	sub := c.Queue.Sub("+/"+TopicMeta, func(topic string, payload []byte) {
		dev, ok := parseMeta(topic, payload)
		if !ok {
			return
		}
		select {
		case resCh <- dev:
		case <-time.After(time.Second):
		}
	})
	defer sub.Close()

	dur := c.DiscoverTimeout
	if dur == 0 {
		dur = DefaultDiscoverTimeout
	}
	timeout := time.After(dur)
	for {
		select {
		case dev := <-resCh:
			res = append(res, dev)
		case <-timeout:
			return
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
	}
}

// parseMeta rejects cleared (empty) meta left behind by the last will.
func parseMeta(topic string, payload []byte) (Device, bool) {
	items := strings.Split(topic, "/")
	if len(items) != 2 || len(payload) == 0 {
		return Device{}, false
	}
	dev := Device{ID: items[0]}
	if err := json.Unmarshal(payload, &dev.Meta); err != nil {
		glog.Warningf("invalid meta from %s: %v", items[0], err)
		return Device{}, false
	}
	return dev, true
}
