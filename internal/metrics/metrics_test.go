package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/eventcore/pkg/hlc"
	"github.com/nainya/eventcore/pkg/index"
	"github.com/nainya/eventcore/pkg/index/memory"
	"github.com/nainya/eventcore/pkg/layout"
)

var (
	_ layout.Recorder     = (*Metrics)(nil)
	_ index.Recorder      = (*Metrics)(nil)
	_ hlc.RefreshRecorder = (*Metrics)(nil)
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	if pb.Counter != nil {
		return pb.Counter.GetValue()
	}
	return pb.Gauge.GetValue()
}

func TestMetricsAreRegistryScoped(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.TypeResolved("int32", "miss")
	assert.Equal(t, 1.0, value(t, a.TypeResolutionsTotal.WithLabelValues("int32", "miss")))
	assert.Equal(t, 0.0, value(t, b.TypeResolutionsTotal.WithLabelValues("int32", "miss")))
}

func TestRegistryRecorder(t *testing.T) {
	m := NewMetrics()
	r := layout.NewRegistry(layout.WithRecorder(m))

	_, err := r.Resolve(layout.Int32())
	require.NoError(t, err)
	_, err = r.Resolve(layout.Int32())
	require.NoError(t, err)

	assert.Equal(t, 1.0, value(t, m.TypeResolutionsTotal.WithLabelValues("int32", "miss")))
	assert.Equal(t, 1.0, value(t, m.TypeResolutionsTotal.WithLabelValues("int32", "hit")))
}

func TestIndexRecorder(t *testing.T) {
	m := NewMetrics()
	e := memory.NewEngine(index.WithRecorder(m))
	entityType := layout.Object("Tick", layout.F("n", layout.Int64()))
	n, err := index.FieldAttribute(entityType, "n")
	require.NoError(t, err)

	_, err = e.IndexOnAttribute(n, index.LT)
	require.NoError(t, err)
	_, err = e.IndexOnAttribute(n, index.SC)
	require.Error(t, err)

	c, err := e.IndexedCollection(context.Background(), entityType)
	require.NoError(t, err)
	_, err = c.Retrieve(index.LessThan{Attr: n, Value: int64(3)})
	require.NoError(t, err)

	assert.Equal(t, 1.0, value(t, m.IndexResolutionsTotal.WithLabelValues(memory.EngineName, "Navigable", "created")))
	assert.Equal(t, 1.0, value(t, m.IndexResolutionsTotal.WithLabelValues(memory.EngineName, "", "unsupported")))
	assert.Equal(t, 1.0, value(t, m.IndexQueriesTotal.WithLabelValues("Tick", "index")))
}

func TestClockAndRefreshRecording(t *testing.T) {
	m := NewMetrics()

	m.RecordClockUpdate("local", hlc.HybridTimestamp{LogicalCounter: 4}, nil)
	m.RecordClockUpdate("receive", hlc.HybridTimestamp{}, hlc.ErrTimeNotAvailable)
	assert.Equal(t, 4.0, value(t, m.ClockCounter))
	assert.Equal(t, 1.0, value(t, m.ClockUpdatesTotal.WithLabelValues("receive", "error")))

	m.TimeRefreshed("system", nil)
	m.TimeRefreshed("ntp", errors.New("timeout"))
	assert.Equal(t, 1.0, value(t, m.TimeRefreshesTotal.WithLabelValues("system", "success")))
	assert.Equal(t, 1.0, value(t, m.TimeRefreshesTotal.WithLabelValues("ntp", "error")))
}

func TestRunUptimeStops(t *testing.T) {
	m := NewMetrics()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		m.RunUptime(time.Millisecond, stop)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return value(t, m.ServerUptimeSeconds) > 0
	}, time.Second, time.Millisecond)
	close(stop)
	<-done
}
