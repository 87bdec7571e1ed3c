package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAgentConfig(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want AgentConfig
	}{
		{
			name: "empty",
			raw:  "",
			want: DefaultAgentConfig(),
		},
		{
			name: "malformed",
			raw:  `{"autoVote": tru`,
			want: DefaultAgentConfig(),
		},
		{
			name: "wrong type",
			raw:  `{"autoVote":"yes","confidenceThreshold":0.9}`,
			want: DefaultAgentConfig(),
		},
		{
			name: "array",
			raw:  `[1,2,3]`,
			want: DefaultAgentConfig(),
		},
		{
			name: "full",
			raw: `{"version":2,"autoVote":true,"confidenceThreshold":0.8,"values":["privacy"],
				"focusAreas":["treasury"],"riskTolerance":"Conservative","delegator":" holder "}`,
			want: AgentConfig{
				Version:             2,
				AutoVote:            true,
				ConfidenceThreshold: 0.8,
				Values:              []string{"privacy"},
				FocusAreas:          []string{"treasury"},
				RiskTolerance:       "conservative",
				Delegator:           "holder",
			},
		},
		{
			name: "snake case and clamping",
			raw:  `{"auto_vote":true,"confidence_threshold":1.7,"focus_areas":["grants"],"risk_tolerance":"reckless"}`,
			want: AgentConfig{
				Version:             AgentConfigVersion,
				AutoVote:            true,
				ConfidenceThreshold: 1,
				Values:              []string{},
				FocusAreas:          []string{"grants"},
				RiskTolerance:       DefaultRiskTolerance,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAgentConfig(tt.raw))
		})
	}
}

func TestDefaultAgentConfig(t *testing.T) {
	cfg := DefaultAgentConfig()
	assert.False(t, cfg.AutoVote)
	assert.Equal(t, 0.65, cfg.ConfidenceThreshold)
	assert.Empty(t, cfg.Values)
	assert.Empty(t, cfg.FocusAreas)
}

func TestProposalIsActive(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	assert.True(t, (&Proposal{Status: "Voting"}).IsActive(now))
	assert.True(t, (&Proposal{Status: "voting", VotingEndsAt: &later}).IsActive(now))
	assert.False(t, (&Proposal{Status: "voting", VotingEndsAt: &earlier}).IsActive(now))
	assert.False(t, (&Proposal{Status: "voting", VotingEndsAt: &now}).IsActive(now))
	assert.False(t, (&Proposal{Status: "Executing"}).IsActive(now))
	assert.False(t, (&Proposal{Status: ""}).IsActive(now))
}

func TestNewProposalContext(t *testing.T) {
	ctx := NewProposalContext(
		Realm{Address: "realm-1", Name: "Grants DAO"},
		Proposal{Address: "p1", Title: "T", Description: "\n\t", Status: "VOTING", Tally: Tally{For: "3"}},
	)
	assert.Equal(t, NoDescription, ctx.Description)
	assert.Equal(t, "voting", ctx.Status)
	assert.Equal(t, "Grants DAO", ctx.RealmName)
	assert.Equal(t, "realm-1", ctx.RealmAddress)
	assert.Equal(t, "3", ctx.Tally.For)
}

func TestParseVoteDirection(t *testing.T) {
	assert.Equal(t, VoteFor, ParseVoteDirection("FOR"))
	assert.Equal(t, VoteAgainst, ParseVoteDirection(" Against "))
	assert.Equal(t, VoteAbstain, ParseVoteDirection("ABSTAIN"))
	assert.Equal(t, VoteAbstain, ParseVoteDirection("maybe"))
}

func TestRecommendationConfidenceClamped(t *testing.T) {
	assert.Equal(t, 1.0, (&Recommendation{Confidence: 3}).NormalizedConfidence())
	assert.Equal(t, 0.0, (&Recommendation{Confidence: -1}).NormalizedConfidence())
	assert.Equal(t, 0.4, (&Recommendation{Confidence: 0.4}).NormalizedConfidence())
}

func TestCycleSummaryAggregate(t *testing.T) {
	var s CycleSummary
	s.Aggregate([]PairResult{
		{Outcome: OutcomeExecuted},
		{Outcome: OutcomeExecuted},
		{Outcome: OutcomeSkipped, SkipReason: SkipAlreadyVoted},
		{Outcome: OutcomeFailed, Error: "signer rejected"},
		{Outcome: OutcomeFailed, Error: "panic"},
		{Outcome: OutcomePreview},
	})
	assert.Equal(t, 2, s.Executed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.Previewed)
	assert.Len(t, s.Results, 6)
}
