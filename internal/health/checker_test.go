package health

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

// flakyProbe fails while failing is true.
type flakyProbe struct {
	mu      sync.Mutex
	failing bool
	calls   int
}

func (f *flakyProbe) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyProbe) check(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing {
		return errors.New("connection refused")
	}
	return nil
}

type transitionLog struct {
	mu     sync.Mutex
	events []string
}

func (l *transitionLog) record(_ context.Context, dep string, healthy bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state := "down"
	if healthy {
		state = "up"
	}
	l.events = append(l.events, dep+":"+state)
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestReport_unknownBeforeFirstCheck(t *testing.T) {
	p := &flakyProbe{}
	c := New([]Probe{{Name: "postgres", Check: p.check}}, Config{}, zap.NewNop())

	r := c.Report()
	if r.Status != StatusUnknown || r.Ready() {
		t.Errorf("report before any check = %+v", r)
	}

	c.CheckAll(context.Background())
	if r := c.Report(); !r.Ready() || r.Dependencies["postgres"].LastChecked == nil {
		t.Errorf("report after healthy check = %+v", r)
	}
}

func TestCheckAll_degradesAfterThreshold(t *testing.T) {
	p := &flakyProbe{}
	c := New([]Probe{{Name: "redis", Check: p.check}}, Config{FailThreshold: 3}, zap.NewNop())
	var log transitionLog
	c.SetTransitionHook(log.record)

	c.CheckAll(context.Background())
	p.setFailing(true)

	for i := 0; i < 2; i++ {
		c.CheckAll(context.Background())
	}
	if got := c.Report().Dependencies["redis"]; got.Status != StatusHealthy || got.FailCount != 2 {
		t.Errorf("below threshold: %+v", got)
	}

	c.CheckAll(context.Background())
	r := c.Report()
	if r.Status != StatusDegraded || r.Dependencies["redis"].Error == "" {
		t.Errorf("at threshold: %+v", r)
	}
	if len(log.events) != 1 || log.events[0] != "redis:down" {
		t.Errorf("transitions = %v", log.events)
	}
}

func TestCheckAll_recoversOnSuccess(t *testing.T) {
	p := &flakyProbe{failing: true}
	c := New([]Probe{{Name: "postgres", Check: p.check}}, Config{FailThreshold: 1}, zap.NewNop())
	var log transitionLog
	c.SetTransitionHook(log.record)

	c.CheckAll(context.Background())
	p.setFailing(false)
	c.CheckAll(context.Background())

	if r := c.Report(); !r.Ready() {
		t.Errorf("expected healthy after recovery, got %+v", r)
	}
	if len(log.events) != 2 || log.events[1] != "postgres:up" {
		t.Errorf("transitions = %v", log.events)
	}
}

func TestCheckAll_metricsPerProbe(t *testing.T) {
	ok, bad := &flakyProbe{}, &flakyProbe{failing: true}
	c := New([]Probe{
		{Name: "postgres", Check: ok.check},
		{Name: "redis", Check: bad.check},
	}, Config{}, zap.NewNop())

	var mu sync.Mutex
	got := map[string]bool{}
	c.SetMetricsRecord(func(dep string, success bool) {
		mu.Lock()
		got[dep] = success
		mu.Unlock()
	})
	c.CheckAll(context.Background())

	if !got["postgres"] || got["redis"] {
		t.Errorf("metrics = %v", got)
	}
}

func TestStart_stopsOnCancel(t *testing.T) {
	c := New(nil, Config{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()
	<-done
}
