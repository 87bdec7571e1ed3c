package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Promptonauts/ballot/pkg/engine"
	"github.com/Promptonauts/ballot/pkg/models"
	"github.com/Promptonauts/ballot/pkg/observability"
	"github.com/google/uuid"
)

const DefaultThrottleDelay = 3 * time.Second

type Directory interface {
	ListActiveAgents(ctx context.Context) ([]*models.Agent, error)
	ListTrackedRealms(ctx context.Context) ([]models.Realm, error)
	HasVote(ctx context.Context, agentID, proposalAddress string) (bool, error)
}

type ProposalSource interface {
	ListProposals(ctx context.Context, realm models.Realm) ([]models.Proposal, error)
}

type Decider interface {
	Decide(ctx context.Context, agent *models.Agent, proposal models.ProposalContext, dryRun bool) (models.PairResult, error)
}

type Options struct {
	// MaxConcurrency is floored and clamped to at least 1.
	MaxConcurrency float64
	// ThrottleDelay is the pause a worker takes between two pairs.
	ThrottleDelay time.Duration
	Logger        *slog.Logger
	Metrics       *observability.MetricsRegistry
	Now           func() time.Time
}

type Orchestrator struct {
	dir       Directory
	proposals ProposalSource
	decider   Decider
	workers   int
	throttle  time.Duration
	logger    *slog.Logger
	metrics   *observability.MetricsRegistry
	now       func() time.Time
}

func New(dir Directory, proposals ProposalSource, decider Decider, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	throttle := opts.ThrottleDelay
	if throttle < 0 {
		throttle = 0
	}
	return &Orchestrator{
		dir:       dir,
		proposals: proposals,
		decider:   decider,
		workers:   ClampConcurrency(opts.MaxConcurrency),
		throttle:  throttle,
		logger:    logger.With("component", "orchestrator"),
		metrics:   metrics,
		now:       now,
	}
}

func ClampConcurrency(v float64) int {
	if math.IsNaN(v) || v < 1 {
		return 1
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v))
}

type pair struct {
	agent    *models.Agent
	proposal models.ProposalContext
}

// Run performs one cycle over every eligible agent and every active proposal.
// Only discovery failures are returned as errors; per-pair failures are
// counted in the summary.
func (o *Orchestrator) Run(ctx context.Context, dryRun bool) (*models.CycleSummary, error) {
	summary := &models.CycleSummary{
		ID:        uuid.New().String(),
		DryRun:    dryRun,
		StartedAt: o.now().UTC(),
		Results:   []models.PairResult{},
	}
	log := o.logger.With("cycle_id", summary.ID, "dry_run", dryRun)

	agents, err := o.dir.ListActiveAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	eligible := make([]*models.Agent, 0, len(agents))
	for _, a := range agents {
		if engine.IsEligibleForAutonomy(a) {
			eligible = append(eligible, a)
		}
	}
	summary.AgentsScanned = len(agents)
	summary.AgentsEligible = len(eligible)

	proposals, err := o.discoverProposals(ctx, log)
	if err != nil {
		return nil, err
	}
	summary.ActiveProposals = len(proposals)

	pairs := make([]pair, 0, len(eligible)*len(proposals))
	for _, a := range eligible {
		for _, p := range proposals {
			pairs = append(pairs, pair{agent: a, proposal: p})
		}
	}
	summary.CombinationsConsidered = len(pairs)

	log.Info("cycle started",
		"agents_scanned", summary.AgentsScanned,
		"agents_eligible", summary.AgentsEligible,
		"active_proposals", summary.ActiveProposals,
		"combinations", summary.CombinationsConsidered)

	summary.Aggregate(o.execute(ctx, pairs, dryRun))
	summary.FinishedAt = o.now().UTC()

	log.Info("cycle finished",
		"executed", summary.Executed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"previewed", summary.Previewed,
		"duration", summary.FinishedAt.Sub(summary.StartedAt))
	return summary, nil
}

func (o *Orchestrator) discoverProposals(ctx context.Context, log *slog.Logger) ([]models.ProposalContext, error) {
	realms, err := o.dir.ListTrackedRealms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked realms: %w", err)
	}

	now := o.now()
	var active []models.ProposalContext
	for _, realm := range realms {
		props, err := o.proposals.ListProposals(ctx, realm)
		if err != nil {
			log.Error("fetch realm proposals failed", "realm", realm.Address, "error", err)
			continue
		}
		for _, p := range props {
			if !p.IsActive(now) {
				continue
			}
			active = append(active, models.NewProposalContext(realm, p))
		}
	}
	return active, nil
}

// execute runs pairs through a fixed pool of workers claiming work from a
// shared cursor. Results are returned in pair order.
func (o *Orchestrator) execute(ctx context.Context, pairs []pair, dryRun bool) []models.PairResult {
	results := make([]models.PairResult, len(pairs))
	if len(pairs) == 0 {
		return results
	}

	workers := o.workers
	if workers > len(pairs) {
		workers = len(pairs)
	}

	var (
		cursor  atomic.Int64
		claimed = make([]bool, len(pairs))
		wg      sync.WaitGroup
		total   = int64(len(pairs))
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				idx := cursor.Add(1) - 1
				if idx >= total {
					return
				}
				claimed[idx] = true
				results[idx] = o.runPair(ctx, pairs[idx], dryRun)

				if cursor.Load() >= total || o.throttle == 0 {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(o.throttle):
				}
			}
		}()
	}
	wg.Wait()

	// Pairs never claimed because the context ended are left for the next cycle.
	out := results[:0]
	for i, r := range results {
		if claimed[i] {
			out = append(out, r)
		}
	}
	return out
}

func (o *Orchestrator) runPair(ctx context.Context, p pair, dryRun bool) (res models.PairResult) {
	start := time.Now()
	inflight := o.metrics.Gauge(observability.PairsInFlight)
	inflight.Inc()
	defer func() {
		inflight.Dec()
		o.metrics.Histogram(observability.PairDuration).ObserveSince(start)
		o.count(res)
	}()

	log := o.logger.With("agent_id", p.agent.ID, "proposal", p.proposal.Address)
	fail := func(err error) models.PairResult {
		log.Error("pair failed", "error", err)
		return models.PairResult{
			AgentID:         p.agent.ID,
			ProposalAddress: p.proposal.Address,
			Outcome:         models.OutcomeFailed,
			Error:           err.Error(),
		}
	}
	defer func() {
		if r := recover(); r != nil {
			res = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	voted, err := o.dir.HasVote(ctx, p.agent.ID, p.proposal.Address)
	if err != nil {
		return fail(fmt.Errorf("check existing vote: %w", err))
	}
	if voted {
		return models.Skip(p.agent.ID, p.proposal.Address, models.SkipAlreadyVoted)
	}

	res, err = o.decider.Decide(ctx, p.agent, p.proposal, dryRun)
	if err != nil {
		return fail(err)
	}
	return res
}

func (o *Orchestrator) count(res models.PairResult) {
	switch res.Outcome {
	case models.OutcomeExecuted:
		o.metrics.Counter(observability.PairsExecuted).Inc()
	case models.OutcomeSkipped:
		o.metrics.Counter(observability.PairsSkipped).Inc()
	case models.OutcomePreview:
		o.metrics.Counter(observability.PairsPreviewed).Inc()
	default:
		o.metrics.Counter(observability.PairsFailed).Inc()
	}
}
