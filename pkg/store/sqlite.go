package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Promptonauts/ballot/pkg/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		wallet_id TEXT,
		social_profile_id TEXT,
		config TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS realms (
		address TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tracked INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS votes (
		id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		proposal_address TEXT NOT NULL,
		realm_address TEXT NOT NULL DEFAULT '',
		vote TEXT NOT NULL,
		reasoning TEXT NOT NULL,
		confidence REAL NOT NULL,
		tx_signature TEXT,
		social_post_id TEXT,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (agent_id, proposal_address)
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		proposal_address TEXT NOT NULL,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (agent_id, proposal_address)
	);

	CREATE INDEX IF NOT EXISTS idx_agents_active ON agents(active);
	CREATE INDEX IF NOT EXISTS idx_votes_created ON votes(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Agents

func (s *SQLiteStore) PutAgent(ctx context.Context, agent *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	config := agent.ConfigJSON
	if config == "" {
		config = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, active, wallet_id, social_profile_id, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			wallet_id = excluded.wallet_id,
			social_profile_id = excluded.social_profile_id,
			config = excluded.config,
			updated_at = excluded.updated_at
	`, agent.ID, agent.Name, agent.Active, nullString(agent.WalletID), nullString(agent.SocialProfileID),
		config, agent.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

const agentColumns = "id, name, active, wallet_id, social_profile_id, config, created_at"

func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+agentColumns+" FROM agents WHERE id = ?", id)
	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}
	return agent, nil
}

func (s *SQLiteStore) ListActiveAgents(ctx context.Context) ([]*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE active = 1 ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var results []*models.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		results = append(results, agent)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (*models.Agent, error) {
	var (
		a       models.Agent
		wallet  sql.NullString
		profile sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Active, &wallet, &profile, &a.ConfigJSON, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.WalletID = wallet.String
	a.SocialProfileID = profile.String
	return &a, nil
}

// Realms

func (s *SQLiteStore) TrackRealm(ctx context.Context, realm *models.Realm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if realm.CreatedAt.IsZero() {
		realm.CreatedAt = time.Now().UTC()
	}
	realm.Tracked = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO realms (address, name, tracked, created_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(address) DO UPDATE SET
			name = excluded.name,
			tracked = 1
	`, realm.Address, realm.Name, realm.CreatedAt)
	if err != nil {
		return fmt.Errorf("track realm: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UntrackRealm(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE realms SET tracked = 0 WHERE address = ?", address)
	if err != nil {
		return fmt.Errorf("untrack realm: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("realm %s: %w", address, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListTrackedRealms(ctx context.Context) ([]models.Realm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT address, name, tracked, created_at FROM realms WHERE tracked = 1 ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("list realms: %w", err)
	}
	defer rows.Close()

	var results []models.Realm
	for rows.Next() {
		var r models.Realm
		if err := rows.Scan(&r.Address, &r.Name, &r.Tracked, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan realm: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Votes

func (s *SQLiteStore) HasVote(ctx context.Context, agentID, proposalAddress string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM votes WHERE agent_id = ? AND proposal_address = ? LIMIT 1",
		agentID, proposalAddress,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query vote: %w", err)
	}
	return true, nil
}

// UpsertVote writes the outcome for a pair. A second write for the same key
// only fills columns that are still null: the first signature and the first
// social post id win, everything else stays as first written.
func (s *SQLiteStore) UpsertVote(ctx context.Context, vote *models.VoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vote.ID == "" {
		vote.ID = uuid.New().String()
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO votes (id, agent_id, proposal_address, realm_address, vote, reasoning, confidence,
			tx_signature, social_post_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id, proposal_address) DO UPDATE SET
			tx_signature = COALESCE(votes.tx_signature, excluded.tx_signature),
			social_post_id = COALESCE(votes.social_post_id, excluded.social_post_id)
	`, vote.ID, vote.AgentID, vote.ProposalAddress, vote.RealmAddress, string(vote.Vote), vote.Reasoning,
		vote.Confidence, vote.TxSignature, vote.SocialPostID, vote.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert vote: %w", err)
	}
	return nil
}

const voteColumns = "id, agent_id, proposal_address, realm_address, vote, reasoning, confidence, tx_signature, social_post_id, created_at"

func (s *SQLiteStore) GetVote(ctx context.Context, agentID, proposalAddress string) (*models.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+voteColumns+" FROM votes WHERE agent_id = ? AND proposal_address = ?",
		agentID, proposalAddress)
	vote, err := scanVote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vote %s/%s: %w", agentID, proposalAddress, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query vote: %w", err)
	}
	return vote, nil
}

func (s *SQLiteStore) ListVotes(ctx context.Context, agentID string, limit int) ([]*models.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + voteColumns + " FROM votes"
	args := []interface{}{}
	if agentID != "" {
		query += " WHERE agent_id = ?"
		args = append(args, agentID)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var results []*models.VoteRecord
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		results = append(results, vote)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) CountVotes(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM votes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return n, nil
}

func scanVote(row scanner) (*models.VoteRecord, error) {
	var (
		v    models.VoteRecord
		vote string
		sig  sql.NullString
		post sql.NullString
	)
	if err := row.Scan(&v.ID, &v.AgentID, &v.ProposalAddress, &v.RealmAddress, &vote, &v.Reasoning,
		&v.Confidence, &sig, &post, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Vote = models.VoteDirection(vote)
	if sig.Valid {
		v.TxSignature = &sig.String
	}
	if post.Valid {
		v.SocialPostID = &post.String
	}
	return &v, nil
}

// Analyses

func (s *SQLiteStore) UpsertAnalysis(ctx context.Context, analysis *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if analysis.ID == "" {
		analysis.ID = uuid.New().String()
	}
	analysis.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(analysis.Recommendation)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, agent_id, proposal_address, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(agent_id, proposal_address) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, analysis.ID, analysis.AgentID, analysis.ProposalAddress, string(data), analysis.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, agentID, proposalAddress string) (*models.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		a    models.AnalysisRecord
		data string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, agent_id, proposal_address, data, updated_at FROM analyses WHERE agent_id = ? AND proposal_address = ?",
		agentID, proposalAddress,
	).Scan(&a.ID, &a.AgentID, &a.ProposalAddress, &data, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s/%s: %w", agentID, proposalAddress, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &a.Recommendation); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
