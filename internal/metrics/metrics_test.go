package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTurn(OutcomeReplied)
	m.ObserveTurn(OutcomeReplied)
	m.ObserveShortcut("repeat")
	m.ObserveGeneration(200*time.Millisecond, "timeout")
	m.ObserveDedupRetry()
	m.ObserveTraitUpdate()
	m.ObservePersistError("personality")

	if got := testutil.ToFloat64(m.Turns.WithLabelValues(OutcomeReplied)); got != 2 {
		t.Errorf("turns{replied} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ShortcutHits.WithLabelValues("repeat")); got != 1 {
		t.Errorf("shortcut{repeat} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GenerationErrors.WithLabelValues("timeout")); got != 1 {
		t.Errorf("generation errors{timeout} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DedupRetries); got != 1 {
		t.Errorf("dedup retries = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.GenerationDuration); got != 1 {
		t.Errorf("generation histogram series = %d, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveTurn(OutcomeFailed)
	m.ObserveShortcut("ignore")
	m.ObserveGeneration(time.Second, "")
	m.ObserveDedupRetry()
	m.ObserveTraitUpdate()
	m.ObservePersistError("x")
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.ObserveTurn(OutcomeShortcut)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `moodclaw_turns_total{outcome="shortcut"} 1`) {
		t.Errorf("metrics output missing turn counter:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing runtime collector")
	}
}
