// Package supervisor serializes voting cycles and keeps the worker's running
// totals. At most one cycle, live or dry-run, executes at a time.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Promptonauts/ballot/pkg/models"
	"github.com/Promptonauts/ballot/pkg/observability"
)

// ErrCycleInProgress is returned when a trigger arrives while another cycle
// is still running. Callers may retry later.
var ErrCycleInProgress = errors.New("cycle already in progress")

type Runner interface {
	Run(ctx context.Context, dryRun bool) (*models.CycleSummary, error)
}

type Config struct {
	Enabled        bool          `json:"enabled"`
	Interval       time.Duration `json:"interval"`
	MaxConcurrency int           `json:"maxConcurrency"`
	DryRun         bool          `json:"dryRun"`
	ThrottleDelay  time.Duration `json:"throttleDelay"`
}

type Health struct {
	Status          string     `json:"status"`
	Uptime          string     `json:"uptime"`
	UptimeSeconds   int64      `json:"uptimeSeconds"`
	LastCycleAt     *time.Time `json:"lastCycleAt,omitempty"`
	CycleInProgress bool       `json:"cycleInProgress"`
}

type Status struct {
	Worker models.WorkerState `json:"worker"`
	Config Config             `json:"config"`
}

type Supervisor struct {
	runner  Runner
	cfg     Config
	logger  *slog.Logger
	metrics *observability.MetricsRegistry
	now     func() time.Time

	mu    sync.Mutex
	state models.WorkerState
}

func New(runner Runner, cfg Config, logger *slog.Logger, metrics *observability.MetricsRegistry) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetricsRegistry()
	}
	s := &Supervisor{
		runner:  runner,
		cfg:     cfg,
		logger:  logger.With("component", "supervisor"),
		metrics: metrics,
		now:     time.Now,
	}
	s.state.StartedAt = s.now().UTC()
	return s
}

func (s *Supervisor) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CycleInProgress {
		return false
	}
	s.state.CycleInProgress = true
	return true
}

func (s *Supervisor) release() {
	s.mu.Lock()
	s.state.CycleInProgress = false
	s.mu.Unlock()
}

// TriggerCycle runs a live cycle with the configured dry-run default and
// folds the result into the running totals.
func (s *Supervisor) TriggerCycle(ctx context.Context) (*models.CycleSummary, error) {
	if !s.acquire() {
		s.metrics.Counter(observability.CyclesBusy).Inc()
		return nil, ErrCycleInProgress
	}
	defer s.release()

	start := time.Now()
	summary, err := s.runner.Run(ctx, s.cfg.DryRun)
	s.metrics.Histogram(observability.CycleDuration).ObserveSince(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state.LastError = err.Error()
		s.metrics.Counter(observability.CyclesFailed).Inc()
		s.logger.Error("cycle failed", "error", err)
		return nil, err
	}
	at := s.now().UTC()
	s.state.LastCycleAt = &at
	s.state.LastCycleSummary = summary
	s.state.LastError = ""
	s.state.TotalCyclesRun++
	s.state.TotalVotesExecuted += summary.Executed
	s.state.TotalVotesFailed += summary.Failed
	s.metrics.Counter(observability.CyclesRun).Inc()
	return summary, nil
}

// TriggerDryRun runs a cycle with dry-run forced on. It holds the same guard
// as a live cycle but leaves totals and the last-cycle slot alone.
func (s *Supervisor) TriggerDryRun(ctx context.Context) (*models.CycleSummary, error) {
	if !s.acquire() {
		s.metrics.Counter(observability.CyclesBusy).Inc()
		return nil, ErrCycleInProgress
	}
	defer s.release()

	summary, err := s.runner.Run(ctx, true)
	if err != nil {
		s.logger.Error("dry run failed", "error", err)
		return nil, err
	}
	return summary, nil
}

// Run triggers a live cycle every interval until ctx is done. A tick that
// lands on a running cycle is dropped.
func (s *Supervisor) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("voting worker disabled")
		return
	}
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s.mu.Lock()
	s.state.Running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.state.Running = false
		s.mu.Unlock()
	}()

	s.logger.Info("voting worker started", "interval", interval, "dry_run", s.cfg.DryRun)
	s.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("voting worker stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Supervisor) tick(ctx context.Context) {
	// Cycle errors are already recorded in the worker state.
	if _, err := s.TriggerCycle(ctx); errors.Is(err, ErrCycleInProgress) {
		s.logger.Info("scheduled cycle skipped, previous cycle still running")
	}
}

func (s *Supervisor) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "starting"
	if s.state.Running {
		status = "running"
	}
	uptime := s.now().Sub(s.state.StartedAt).Truncate(time.Second)
	return Health{
		Status:          status,
		Uptime:          uptime.String(),
		UptimeSeconds:   int64(uptime.Seconds()),
		LastCycleAt:     s.state.LastCycleAt,
		CycleInProgress: s.state.CycleInProgress,
	}
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Worker: s.state, Config: s.cfg}
}
