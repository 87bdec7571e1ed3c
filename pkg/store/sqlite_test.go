package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Promptonauts/ballot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ballot.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestUpsertVoteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := &models.VoteRecord{
		AgentID:         "agent-1",
		ProposalAddress: "prop-1",
		Vote:            models.VoteFor,
		Reasoning:       "aligned with treasury values",
		Confidence:      0.9,
		TxSignature:     models.StringPtr("sig-1"),
	}
	require.NoError(t, s.UpsertVote(ctx, first))

	second := &models.VoteRecord{
		AgentID:         "agent-1",
		ProposalAddress: "prop-1",
		Vote:            models.VoteAgainst,
		Reasoning:       "second write",
		Confidence:      0.1,
		TxSignature:     models.StringPtr("sig-2"),
		SocialPostID:    models.StringPtr("post-2"),
	}
	require.NoError(t, s.UpsertVote(ctx, second))

	n, err := s.CountVotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetVote(ctx, "agent-1", "prop-1")
	require.NoError(t, err)
	assert.Equal(t, models.VoteFor, got.Vote)
	assert.Equal(t, "aligned with treasury values", got.Reasoning)
	require.NotNil(t, got.TxSignature)
	assert.Equal(t, "sig-1", *got.TxSignature)
	// The first write had no post id, so the merge fills it.
	require.NotNil(t, got.SocialPostID)
	assert.Equal(t, "post-2", *got.SocialPostID)
}

func TestUpsertVoteKeepsNullSignatureForAbstention(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertVote(ctx, &models.VoteRecord{
		AgentID:         "agent-1",
		ProposalAddress: "prop-1",
		Vote:            models.VoteAbstain,
		Reasoning:       "unsure",
		Confidence:      0.4,
	}))

	got, err := s.GetVote(ctx, "agent-1", "prop-1")
	require.NoError(t, err)
	assert.Equal(t, models.VoteAbstain, got.Vote)
	assert.Nil(t, got.TxSignature)
	assert.Nil(t, got.SocialPostID)
}

func TestConcurrentUpsertVoteSingleRow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.UpsertVote(ctx, &models.VoteRecord{
				AgentID:         "agent-1",
				ProposalAddress: "prop-1",
				Vote:            models.VoteFor,
				Reasoning:       "race",
				Confidence:      0.8,
			}))
		}()
	}
	wg.Wait()

	n, err := s.CountVotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHasVote(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ok, err := s.HasVote(ctx, "agent-1", "prop-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.UpsertVote(ctx, &models.VoteRecord{
		AgentID: "agent-1", ProposalAddress: "prop-1", Vote: models.VoteFor, Reasoning: "r", Confidence: 1,
	}))

	ok, err = s.HasVote(ctx, "agent-1", "prop-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasVote(ctx, "agent-2", "prop-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertAnalysisOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertAnalysis(ctx, &models.AnalysisRecord{
		AgentID:         "agent-1",
		ProposalAddress: "prop-1",
		Recommendation:  models.Recommendation{Vote: "FOR", Confidence: 0.9, Reasoning: "first"},
	}))
	require.NoError(t, s.UpsertAnalysis(ctx, &models.AnalysisRecord{
		AgentID:         "agent-1",
		ProposalAddress: "prop-1",
		Recommendation: models.Recommendation{
			Vote: "AGAINST", Confidence: 0.3, Reasoning: "second", Conditions: []string{"audit first"},
		},
	}))

	got, err := s.GetAnalysis(ctx, "agent-1", "prop-1")
	require.NoError(t, err)
	assert.Equal(t, "AGAINST", got.Recommendation.Vote)
	assert.Equal(t, "second", got.Recommendation.Reasoning)
	assert.Equal(t, []string{"audit first"}, got.Recommendation.Conditions)
}

func TestListActiveAgents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.PutAgent(ctx, &models.Agent{
		ID: "a1", Name: "Treasurer", Active: true, WalletID: "wallet-1",
		ConfigJSON: `{"autoVote":true}`,
	}))
	require.NoError(t, s.PutAgent(ctx, &models.Agent{ID: "a2", Name: "Dormant", Active: false}))
	require.NoError(t, s.PutAgent(ctx, &models.Agent{ID: "a3", Name: "No wallet", Active: true}))

	agents, err := s.ListActiveAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "a1", agents[0].ID)
	assert.Equal(t, "wallet-1", agents[0].WalletID)
	assert.True(t, agents[0].Config().AutoVote)
	assert.Equal(t, "a3", agents[1].ID)
	assert.Empty(t, agents[1].WalletID)
	assert.Equal(t, "{}", agents[1].ConfigJSON)
}

func TestPutAgentUpdates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	agent := &models.Agent{ID: "a1", Name: "Treasurer", Active: true}
	require.NoError(t, s.PutAgent(ctx, agent))
	agent.WalletID = "wallet-9"
	agent.Active = false
	require.NoError(t, s.PutAgent(ctx, agent))

	got, err := s.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, "wallet-9", got.WalletID)

	_, err = s.GetAgent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrackedRealms(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.TrackRealm(ctx, &models.Realm{Address: "realm-b", Name: "Beta"}))
	require.NoError(t, s.TrackRealm(ctx, &models.Realm{Address: "realm-a", Name: "Alpha"}))

	realms, err := s.ListTrackedRealms(ctx)
	require.NoError(t, err)
	require.Len(t, realms, 2)
	assert.Equal(t, "Alpha", realms[0].Name)

	require.NoError(t, s.UntrackRealm(ctx, "realm-a"))
	realms, err = s.ListTrackedRealms(ctx)
	require.NoError(t, err)
	require.Len(t, realms, 1)
	assert.Equal(t, "realm-b", realms[0].Address)

	assert.ErrorIs(t, s.UntrackRealm(ctx, "realm-z"), ErrNotFound)

	// Re-tracking restores the realm.
	require.NoError(t, s.TrackRealm(ctx, &models.Realm{Address: "realm-a", Name: "Alpha"}))
	realms, err = s.ListTrackedRealms(ctx)
	require.NoError(t, err)
	assert.Len(t, realms, 2)
}

func TestListVotes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, p := range []string{"p1", "p2", "p3"} {
		require.NoError(t, s.UpsertVote(ctx, &models.VoteRecord{
			AgentID: "a1", ProposalAddress: p, Vote: models.VoteFor, Reasoning: "r", Confidence: 0.7,
		}))
	}
	require.NoError(t, s.UpsertVote(ctx, &models.VoteRecord{
		AgentID: "a2", ProposalAddress: "p1", Vote: models.VoteAgainst, Reasoning: "r", Confidence: 0.7,
	}))

	votes, err := s.ListVotes(ctx, "a1", 0)
	require.NoError(t, err)
	assert.Len(t, votes, 3)

	votes, err = s.ListVotes(ctx, "a1", 2)
	require.NoError(t, err)
	assert.Len(t, votes, 2)

	votes, err = s.ListVotes(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, votes, 4)
}
