package store

import (
	"context"
	"errors"

	"github.com/Promptonauts/ballot/pkg/models"
)

var ErrNotFound = errors.New("not found")

// Store is the application database. Vote writes are idempotent on
// (agentID, proposalAddress); analysis writes overwrite.
type Store interface {
	PutAgent(ctx context.Context, agent *models.Agent) error
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	ListActiveAgents(ctx context.Context) ([]*models.Agent, error)

	TrackRealm(ctx context.Context, realm *models.Realm) error
	UntrackRealm(ctx context.Context, address string) error
	ListTrackedRealms(ctx context.Context) ([]models.Realm, error)

	HasVote(ctx context.Context, agentID, proposalAddress string) (bool, error)
	UpsertVote(ctx context.Context, vote *models.VoteRecord) error
	GetVote(ctx context.Context, agentID, proposalAddress string) (*models.VoteRecord, error)
	ListVotes(ctx context.Context, agentID string, limit int) ([]*models.VoteRecord, error)
	CountVotes(ctx context.Context) (int, error)

	UpsertAnalysis(ctx context.Context, analysis *models.AnalysisRecord) error
	GetAnalysis(ctx context.Context, agentID, proposalAddress string) (*models.AnalysisRecord, error)

	Migrate() error
	Close() error
}
