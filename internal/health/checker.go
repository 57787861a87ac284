// Package health tracks the reachability of the service's backing stores.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status values reported for a dependency and for the service as a whole.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusUnknown  = "unknown"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe checks one dependency. Check should return quickly and honour ctx.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// TransitionFunc is an optional callback fired when a dependency crosses the
// failure threshold in either direction.
type TransitionFunc func(ctx context.Context, dependency string, healthy bool)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(dependency string, ok bool)

// DependencyStatus is the last known state of one dependency.
type DependencyStatus struct {
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	FailCount   int        `json:"failCount"`
	LastChecked *time.Time `json:"lastChecked,omitempty"`
}

// Report summarises every dependency. Status is degraded when any dependency is.
type Report struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

// Ready reports whether every dependency has been checked and is healthy.
func (r Report) Ready() bool { return r.Status == StatusHealthy }

// Checker runs periodic dependency probes.
type Checker struct {
	probes       []Probe
	cfg          Config
	mu           sync.Mutex
	status       map[string]DependencyStatus
	onTransition TransitionFunc
	onMetrics    MetricsRecordFunc
	logger       *zap.Logger
}

// New creates a Checker for probes.
func New(probes []Probe, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	status := make(map[string]DependencyStatus, len(probes))
	for _, p := range probes {
		status[p.Name] = DependencyStatus{Status: StatusUnknown}
	}
	return &Checker{
		probes: probes,
		cfg:    cfg,
		status: status,
		logger: logger,
	}
}

// SetTransitionHook configures the transition callback.
func (h *Checker) SetTransitionHook(fn TransitionFunc) {
	h.onTransition = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs the check loop until ctx is cancelled.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs every probe concurrently and waits for them to finish.
func (h *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range h.probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			h.check(ctx, p)
		}(p)
	}
	wg.Wait()
}

func (h *Checker) check(ctx context.Context, p Probe) {
	pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	err := p.Check(pctx)
	cancel()

	if h.onMetrics != nil {
		h.onMetrics(p.Name, err == nil)
	}

	now := time.Now().UTC()
	h.mu.Lock()
	prev := h.status[p.Name]
	next := DependencyStatus{LastChecked: &now, Status: StatusHealthy}
	if err != nil {
		next.FailCount = prev.FailCount + 1
		next.Error = err.Error()
		if next.FailCount >= h.cfg.FailThreshold {
			next.Status = StatusDegraded
		} else if prev.Status != StatusUnknown {
			// Below threshold the previous verdict stands.
			next.Status = prev.Status
		} else {
			next.Status = StatusUnknown
		}
	}
	h.status[p.Name] = next
	h.mu.Unlock()

	switch {
	case prev.Status == StatusDegraded && next.Status == StatusHealthy:
		h.logger.Info("health: recovered", zap.String("dependency", p.Name))
		h.transition(ctx, p.Name, true)
	case prev.Status != StatusDegraded && next.Status == StatusDegraded:
		h.logger.Warn("health: degraded",
			zap.String("dependency", p.Name),
			zap.Int("fail_count", next.FailCount),
			zap.Error(err),
		)
		h.transition(ctx, p.Name, false)
	}
}

func (h *Checker) transition(ctx context.Context, name string, healthy bool) {
	if h.onTransition != nil {
		h.onTransition(ctx, name, healthy)
	}
}

// Report returns a snapshot of the current dependency states.
func (h *Checker) Report() Report {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := Report{Status: StatusHealthy, Dependencies: make(map[string]DependencyStatus, len(h.status))}
	for name, st := range h.status {
		r.Dependencies[name] = st
		switch {
		case st.Status == StatusDegraded:
			r.Status = StatusDegraded
		case st.Status == StatusUnknown && r.Status == StatusHealthy:
			r.Status = StatusUnknown
		}
	}
	return r
}
