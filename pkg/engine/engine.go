// Package engine resolves a single agent × proposal pair into a vote.
//
// Decide runs its steps in a fixed order and never writes a vote record for a
// pair unless the vote was submitted on-chain or the agent abstained because
// the analysis fell below its confidence threshold.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Promptonauts/ballot/pkg/models"
	"github.com/Promptonauts/ballot/pkg/observability"
)

type VoteStore interface {
	HasVote(ctx context.Context, agentID, proposalAddress string) (bool, error)
	UpsertVote(ctx context.Context, vote *models.VoteRecord) error
	UpsertAnalysis(ctx context.Context, analysis *models.AnalysisRecord) error
}

type Analyzer interface {
	Analyze(ctx context.Context, proposal models.ProposalContext, values models.AgentValues) (*models.Recommendation, error)
}

type TxBuilder interface {
	BuildVoteTx(ctx context.Context, req models.VoteTxRequest) (string, error)
}

type Signer interface {
	SignAndSubmit(ctx context.Context, walletID, agentID, tx string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, post models.SocialPost) (string, error)
}

// Deps are the collaborators of an Engine. Publisher, Logger and Metrics may
// be nil.
type Deps struct {
	Store     VoteStore
	Analyzer  Analyzer
	Builder   TxBuilder
	Signer    Signer
	Publisher Publisher
	Logger    *slog.Logger
	Metrics   *observability.MetricsRegistry
}

type Engine struct {
	store     VoteStore
	analyzer  Analyzer
	builder   TxBuilder
	signer    Signer
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.MetricsRegistry
}

func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsRegistry()
	}
	return &Engine{
		store:     deps.Store,
		analyzer:  deps.Analyzer,
		builder:   deps.Builder,
		signer:    deps.Signer,
		publisher: deps.Publisher,
		logger:    logger.With("component", "engine"),
		metrics:   metrics,
	}
}

// IsEligibleForAutonomy reports whether an agent may vote without a human:
// it is active, has a signing wallet and has auto-voting switched on.
func IsEligibleForAutonomy(agent *models.Agent) bool {
	if agent == nil || !agent.Active || !agent.HasWallet() {
		return false
	}
	return agent.Config().AutoVote
}

// Decide resolves one pair. Policy skips, dry-run previews and rejected
// submissions come back as a PairResult; the error return is reserved for
// unexpected failures such as an unreachable database or analysis service.
func (e *Engine) Decide(ctx context.Context, agent *models.Agent, proposal models.ProposalContext, dryRun bool) (models.PairResult, error) {
	log := e.logger.With("agent_id", agent.ID, "proposal", proposal.Address)

	if !agent.HasWallet() {
		log.Debug("skip", "reason", models.SkipMissingWallet)
		return models.Skip(agent.ID, proposal.Address, models.SkipMissingWallet), nil
	}
	if models.NormalizeStatus(proposal.Status) != models.StatusVoting {
		log.Debug("skip", "reason", models.SkipNotVoting, "status", proposal.Status)
		return models.Skip(agent.ID, proposal.Address, models.SkipNotVoting), nil
	}

	voted, err := e.store.HasVote(ctx, agent.ID, proposal.Address)
	if err != nil {
		return models.PairResult{}, fmt.Errorf("check existing vote: %w", err)
	}
	if voted {
		log.Debug("skip", "reason", models.SkipAlreadyVoted)
		return models.Skip(agent.ID, proposal.Address, models.SkipAlreadyVoted), nil
	}

	cfg := agent.Config()
	if !cfg.AutoVote {
		log.Debug("skip", "reason", models.SkipAutoVoteOff)
		return models.Skip(agent.ID, proposal.Address, models.SkipAutoVoteOff), nil
	}

	e.metrics.Counter(observability.AnalysisCalls).Inc()
	rec, err := e.analyzer.Analyze(ctx, proposal, agent.ValuesFor(cfg))
	if err != nil {
		return models.PairResult{}, fmt.Errorf("analyze proposal: %w", err)
	}
	if err := e.store.UpsertAnalysis(ctx, &models.AnalysisRecord{
		AgentID:         agent.ID,
		ProposalAddress: proposal.Address,
		Recommendation:  *rec,
	}); err != nil {
		// Audit trail only; the decision does not depend on it.
		log.Warn("persist analysis failed", "error", err)
	}

	confidence := rec.NormalizedConfidence()
	direction := rec.Direction()

	if confidence < cfg.ConfidenceThreshold {
		return e.abstain(ctx, log, agent, proposal, rec.Reasoning, confidence, cfg.ConfidenceThreshold, dryRun)
	}

	result := models.PairResult{
		AgentID:         agent.ID,
		ProposalAddress: proposal.Address,
		Vote:            direction,
		Confidence:      confidence,
		Reasoning:       rec.Reasoning,
	}

	if dryRun {
		result.Outcome = models.OutcomePreview
		log.Info("dry run decision", "vote", direction, "confidence", confidence)
		return result, nil
	}

	signature, err := e.submit(ctx, agent, proposal, direction, cfg)
	if err != nil {
		log.Warn("vote submission failed", "vote", direction, "error", err)
		result.Outcome = models.OutcomeFailed
		result.Error = err.Error()
		return result, nil
	}
	result.TxSignature = signature

	postID := e.publish(ctx, log, agent, proposal, direction, rec.Reasoning, confidence)
	result.SocialPostID = postID

	if err := e.store.UpsertVote(ctx, &models.VoteRecord{
		AgentID:         agent.ID,
		ProposalAddress: proposal.Address,
		RealmAddress:    proposal.RealmAddress,
		Vote:            direction,
		Reasoning:       rec.Reasoning,
		Confidence:      confidence,
		TxSignature:     models.StringPtr(signature),
		SocialPostID:    models.StringPtr(postID),
	}); err != nil {
		// The vote is on-chain. Surface the signature so it can be reconciled.
		log.Error("persist executed vote failed", "tx_signature", signature, "error", err)
		return models.PairResult{}, fmt.Errorf("persist vote %s: %w", signature, err)
	}

	result.Outcome = models.OutcomeExecuted
	log.Info("vote executed", "vote", direction, "confidence", confidence, "tx_signature", signature)
	return result, nil
}

func (e *Engine) abstain(ctx context.Context, log *slog.Logger, agent *models.Agent, proposal models.ProposalContext,
	reasoning string, confidence, threshold float64, dryRun bool) (models.PairResult, error) {
	reasoning = fmt.Sprintf("%s\n\nAbstaining: confidence %.2f is below this agent's threshold of %.2f.",
		reasoning, confidence, threshold)

	result := models.Skip(agent.ID, proposal.Address, models.SkipBelowConfidence)
	result.Vote = models.VoteAbstain
	result.Confidence = confidence
	result.Reasoning = reasoning

	if dryRun {
		log.Debug("skip", "reason", models.SkipBelowConfidence, "confidence", confidence, "dry_run", true)
		return result, nil
	}

	postID := e.publish(ctx, log, agent, proposal, models.VoteAbstain, reasoning, confidence)
	result.SocialPostID = postID

	if err := e.store.UpsertVote(ctx, &models.VoteRecord{
		AgentID:         agent.ID,
		ProposalAddress: proposal.Address,
		RealmAddress:    proposal.RealmAddress,
		Vote:            models.VoteAbstain,
		Reasoning:       reasoning,
		Confidence:      confidence,
		SocialPostID:    models.StringPtr(postID),
	}); err != nil {
		return models.PairResult{}, fmt.Errorf("persist abstention: %w", err)
	}
	log.Debug("skip", "reason", models.SkipBelowConfidence, "confidence", confidence, "threshold", threshold)
	return result, nil
}

func (e *Engine) submit(ctx context.Context, agent *models.Agent, proposal models.ProposalContext,
	direction models.VoteDirection, cfg models.AgentConfig) (string, error) {
	tx, err := e.builder.BuildVoteTx(ctx, models.VoteTxRequest{
		ProposalAddress: proposal.Address,
		RealmAddress:    proposal.RealmAddress,
		Voter:           agent.WalletID,
		Vote:            direction,
		Delegator:       cfg.Delegator,
	})
	if err != nil {
		return "", fmt.Errorf("build vote transaction: %w", err)
	}
	sig, err := e.signer.SignAndSubmit(ctx, agent.WalletID, agent.ID, tx)
	if err != nil {
		return "", fmt.Errorf("sign and submit: %w", err)
	}
	return sig, nil
}

// publish never fails; an empty id means nothing was posted.
func (e *Engine) publish(ctx context.Context, log *slog.Logger, agent *models.Agent, proposal models.ProposalContext,
	direction models.VoteDirection, reasoning string, confidence float64) string {
	if e.publisher == nil || agent.SocialProfileID == "" {
		return ""
	}
	id, err := e.publisher.Publish(ctx, models.SocialPost{
		ProfileID:       agent.SocialProfileID,
		AgentID:         agent.ID,
		AgentName:       agent.Name,
		ProposalAddress: proposal.Address,
		ProposalTitle:   proposal.Title,
		Vote:            direction,
		Reasoning:       reasoning,
		Confidence:      confidence,
	})
	if err != nil {
		e.metrics.Counter(observability.SocialFailures).Inc()
		log.Warn("social post failed", "error", err)
		return ""
	}
	return id
}
