package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/newsgoat/internal/engine"
	"github.com/IshaanNene/newsgoat/internal/observability"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeEngine struct {
	state engine.State
	last  *engine.Report
}

func (f *fakeEngine) GetState() engine.State     { return f.state }
func (f *fakeEngine) LastReport() *engine.Report { return f.last }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(0, "/metrics", nil, testLogger)
	s.SetEngine(&fakeEngine{state: engine.StateRunning})

	rec := get(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["state"] != "running" {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestRuns(t *testing.T) {
	s := NewServer(0, "", nil, testLogger)
	fe := &fakeEngine{}
	s.SetEngine(fe)

	if rec := get(t, s.Handler(), "/runs/latest"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any run, got %d", rec.Code)
	}

	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	for i := 0; i < maxHistory+3; i++ {
		s.Record(&engine.Report{
			StartedAt:  start.Add(time.Duration(i) * time.Hour),
			FinishedAt: start.Add(time.Duration(i)*time.Hour + time.Minute),
			Sources:    []engine.SourceReport{{Source: "antiwar", Inserted: i}},
		})
	}
	fe.last = &engine.Report{Sources: []engine.SourceReport{{Source: "antiwar", Inserted: 7}}}

	rec := get(t, s.Handler(), "/runs")
	var runs []engine.Report
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != maxHistory {
		t.Fatalf("expected %d runs, got %d", maxHistory, len(runs))
	}
	if runs[0].Sources[0].Inserted != maxHistory+2 {
		t.Errorf("expected newest run first, got %+v", runs[0].Sources[0])
	}

	rec = get(t, s.Handler(), "/runs/latest")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"inserted":7`) {
		t.Errorf("unexpected latest run: %d %s", rec.Code, rec.Body.String())
	}
}

func TestTriggerRun(t *testing.T) {
	s := NewServer(0, "", nil, testLogger)
	post := func() int {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", nil))
		return rec.Code
	}

	if code := post(); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without trigger, got %d", code)
	}

	running := false
	s.SetTrigger(func() error {
		if running {
			return engine.ErrAlreadyRunning
		}
		running = true
		return nil
	})
	if code := post(); code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", code)
	}
	if code := post(); code != http.StatusConflict {
		t.Errorf("expected 409 while running, got %d", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := observability.NewMetrics(testLogger)
	m.ObserveRun(time.Second)
	s := NewServer(0, "/metrics", m, testLogger)

	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "newsgoat_run_duration_seconds") {
		t.Errorf("metrics not exposed: %d", rec.Code)
	}

	rec = get(t, s.Handler(), "/stats")
	if !strings.Contains(rec.Body.String(), `"runs":1`) {
		t.Errorf("unexpected stats %s", rec.Body.String())
	}
}
