package daemon

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/ardctl/pkg/config"
	"github.com/robotalks/ardctl/pkg/pins"
	"github.com/robotalks/ardctl/pkg/serialgate"
)

var eraseSequence = []string{
	"erase input",
	"reset high",
	"sleep 1ms",
	"erase high",
	"sleep 300ms",
	"erase input",
	"sleep 10ms",
	"reset low",
	"sleep 80ms",
	"reset high",
}

func newTestDaemon(t *testing.T) *Daemon {
	d, err := New(&config.Config{
		ID:       "test",
		Pins:     pins.Assignment{}.WithRoleNames(),
		Simulate: true,
	})
	require.NoError(t, err)
	d.Recorder.RealTime = false
	d.Recorder.Verbose = false
	d.Guard.Quiescence = 0
	require.Nil(t, d.MQTT)
	require.Nil(t, d.HTTP)
	return d
}

func logged(d *Daemon, entry string) bool {
	for _, e := range d.Recorder.Log() {
		if e == entry {
			return true
		}
	}
	return false
}

func runTestDaemon(t *testing.T, d *Daemon) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	require.Eventually(t, func() bool { return logged(d, "clock input") },
		time.Second, time.Millisecond)
}

func TestNewSetsUpLines(t *testing.T) {
	d := newTestDaemon(t)
	require.Equal(t, []string{"erase input", "reset high"}, d.Recorder.Log())
	require.Equal(t, serialgate.Enabled, d.Gate.State())
	require.Len(t, d.Runnables(), 2)
}

func TestInjectedErase(t *testing.T) {
	d := newTestDaemon(t)
	runTestDaemon(t, d)
	d.Recorder.Clear()

	n, err := d.Injector.Write([]byte("erase\n"))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Eventually(t, func() bool {
		return len(d.Recorder.Log()) == len(eraseSequence) && !d.Guard.Busy()
	}, time.Second, time.Millisecond)
	require.Equal(t, eraseSequence, d.Recorder.Log())
	require.Equal(t, serialgate.Disabled, d.Gate.State())
}

func TestHandler(t *testing.T) {
	d := newTestDaemon(t)
	srv := httptest.NewServer(d.Handler())
	defer srv.Close()

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/cmd", "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()
	for _, c := range []struct{ cmd, reply string }{
		{"uartoff", "ok"},
		{"reboot", `error: invalid operation "reboot"`},
		{"shutdown", "ok"},
	} {
		require.NoError(t, websocket.Message.Send(conn, c.cmd))
		var reply string
		require.NoError(t, websocket.Message.Receive(conn, &reply))
		require.Equal(t, c.reply, reply, c.cmd)
	}
	require.Equal(t, serialgate.Disabled, d.Gate.State())
	require.Equal(t, "reset low", d.Recorder.Log()[len(d.Recorder.Log())-1])

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `ardctl_dispatch_actions_total{action="uartoff",phase="completed",source="inject"} 1`)
}
