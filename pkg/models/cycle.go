package models

import "time"

type Outcome string

const (
	OutcomeExecuted Outcome = "Executed"
	OutcomeSkipped  Outcome = "Skipped"
	// OutcomeFailed is an attempted but rejected submission, or an error
	// caught at the pair boundary.
	OutcomeFailed Outcome = "Failed"
	// OutcomePreview is a dry-run decision that passed the confidence gate.
	OutcomePreview Outcome = "Preview"
)

type SkipReason string

const (
	SkipMissingWallet   SkipReason = "agent_missing_signing_wallet"
	SkipNotVoting       SkipReason = "proposal_not_voting"
	SkipAlreadyVoted    SkipReason = "already_voted"
	SkipAutoVoteOff     SkipReason = "auto_vote_disabled"
	SkipBelowConfidence SkipReason = "below_confidence_threshold"
)

// PairResult is the resolution of one agent × proposal pair.
type PairResult struct {
	AgentID         string        `json:"agentId"`
	ProposalAddress string        `json:"proposalAddress"`
	Outcome         Outcome       `json:"outcome"`
	SkipReason      SkipReason    `json:"skipReason,omitempty"`
	Vote            VoteDirection `json:"vote,omitempty"`
	Confidence      float64       `json:"confidence,omitempty"`
	Reasoning       string        `json:"reasoning,omitempty"`
	TxSignature     string        `json:"txSignature,omitempty"`
	SocialPostID    string        `json:"socialPostId,omitempty"`
	Error           string        `json:"error,omitempty"`
}

func (r PairResult) Executed() bool { return r.Outcome == OutcomeExecuted }
func (r PairResult) Skipped() bool  { return r.Outcome == OutcomeSkipped }

func Skip(agentID, proposal string, reason SkipReason) PairResult {
	return PairResult{
		AgentID:         agentID,
		ProposalAddress: proposal,
		Outcome:         OutcomeSkipped,
		SkipReason:      reason,
	}
}

type CycleSummary struct {
	ID                     string       `json:"id"`
	DryRun                 bool         `json:"dryRun"`
	StartedAt              time.Time    `json:"startedAt"`
	FinishedAt             time.Time    `json:"finishedAt"`
	AgentsScanned          int          `json:"agentsScanned"`
	AgentsEligible         int          `json:"agentsEligible"`
	ActiveProposals        int          `json:"activeProposals"`
	CombinationsConsidered int          `json:"combinationsConsidered"`
	Executed               int          `json:"executed"`
	Skipped                int          `json:"skipped"`
	Failed                 int          `json:"failed"`
	Previewed              int          `json:"previewed"`
	Results                []PairResult `json:"results"`
}

// Aggregate buckets results into the summary counters. Caught errors arrive as
// OutcomeFailed results, the same bucket as rejected submissions.
func (s *CycleSummary) Aggregate(results []PairResult) {
	s.Executed, s.Skipped, s.Failed, s.Previewed = 0, 0, 0, 0
	for _, r := range results {
		switch r.Outcome {
		case OutcomeExecuted:
			s.Executed++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomePreview:
			s.Previewed++
		default:
			s.Failed++
		}
	}
	s.Results = results
}

// WorkerState is the supervisor's process-wide view, returned by value.
type WorkerState struct {
	Running            bool          `json:"running"`
	CycleInProgress    bool          `json:"cycleInProgress"`
	StartedAt          time.Time     `json:"startedAt"`
	LastCycleAt        *time.Time    `json:"lastCycleAt,omitempty"`
	LastCycleSummary   *CycleSummary `json:"lastCycleSummary,omitempty"`
	LastError          string        `json:"lastError,omitempty"`
	TotalCyclesRun     int           `json:"totalCyclesRun"`
	TotalVotesExecuted int           `json:"totalVotesExecuted"`
	TotalVotesFailed   int           `json:"totalVotesFailed"`
}
