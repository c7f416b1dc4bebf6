package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/ardctl/pkg/bossa"
	"github.com/robotalks/ardctl/pkg/dispatch"
)

func TestCollector(t *testing.T) {
	c := New()
	c.Observe(dispatch.Event{Action: dispatch.ActionErase, Phase: dispatch.PhaseStarted, Source: dispatch.SourceBitstream})
	require.Equal(t, 1.0, testutil.ToFloat64(c.busy))
	c.Observe(dispatch.Event{Action: dispatch.ActionErase, Phase: dispatch.PhaseDropped, Source: dispatch.SourceInject})
	c.Observe(dispatch.Event{Action: dispatch.ActionErase, Phase: dispatch.PhaseCompleted, Source: dispatch.SourceBitstream})
	require.Equal(t, 0.0, testutil.ToFloat64(c.busy))
	require.Equal(t, 1.0, testutil.ToFloat64(c.actions.WithLabelValues("erase", "dropped", "inject")))

	c.ObserveFrame(bossa.Frame{Command: bossa.CommandErase})
	require.Equal(t, 1.0, testutil.ToFloat64(c.frames.WithLabelValues("15")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.True(t, strings.Contains(rec.Body.String(), "ardctl_dispatch_actions_total"))
}
