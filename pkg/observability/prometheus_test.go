package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)
	ctx := context.Background()

	m.OnCollapseStart(ctx, 120)
	m.OnStageComplete(ctx, "headwater", 4, time.Millisecond)
	m.OnStageComplete(ctx, "headwater", 2, time.Millisecond)
	m.OnCollapseComplete(ctx, 6, time.Millisecond, nil)
	m.OnCollapseComplete(ctx, 0, time.Millisecond, errors.New("stuck"))

	if got := testutil.ToFloat64(m.stageRemoved.WithLabelValues("headwater")); got != 6 {
		t.Errorf("removed_segments_total{stage=headwater} = %v, want 6", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("ok")); got != 1 {
		t.Errorf("runs_total{status=ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("error")); got != 1 {
		t.Errorf("runs_total{status=error} = %v, want 1", got)
	}

	m.OnCacheMiss(ctx, "collapse")
	m.OnCacheSet(ctx, "collapse", 512)
	m.OnCacheHit(ctx, "collapse")
	if got := testutil.ToFloat64(m.cacheBytes); got != 512 {
		t.Errorf("written_bytes_total = %v, want 512", got)
	}
	if got := testutil.ToFloat64(m.cacheEvents.WithLabelValues("collapse", "hit")); got != 1 {
		t.Errorf("events_total{event=hit} = %v, want 1", got)
	}

	m.OnResponse(ctx, "POST", "/v1/collapse", 200, time.Millisecond)
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/v1/collapse", "200")); got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}

	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("GatherAndCount() = %d, %v", n, err)
	}
}

func TestPrometheusDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheus(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering twice on one registry should panic")
		}
	}()
	NewPrometheus(reg)
}
