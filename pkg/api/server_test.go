package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Promptonauts/ballot/pkg/models"
	"github.com/Promptonauts/ballot/pkg/observability"
	"github.com/Promptonauts/ballot/pkg/supervisor"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeController struct {
	cycleErr error
	dryRuns  int
	cycles   int
}

func (f *fakeController) TriggerCycle(context.Context) (*models.CycleSummary, error) {
	f.cycles++
	if f.cycleErr != nil {
		return nil, f.cycleErr
	}
	return &models.CycleSummary{ID: "cycle-1", Executed: 2, Failed: 1, Results: []models.PairResult{}}, nil
}

func (f *fakeController) TriggerDryRun(context.Context) (*models.CycleSummary, error) {
	f.dryRuns++
	if f.cycleErr != nil {
		return nil, f.cycleErr
	}
	return &models.CycleSummary{ID: "cycle-2", DryRun: true, Previewed: 3, Results: []models.PairResult{}}, nil
}

func (f *fakeController) Health() supervisor.Health {
	return supervisor.Health{Status: "running", Uptime: "1m0s", UptimeSeconds: 60}
}

func (f *fakeController) Status() supervisor.Status {
	return supervisor.Status{
		Worker: models.WorkerState{Running: true, TotalCyclesRun: 7},
		Config: supervisor.Config{Enabled: true, MaxConcurrency: 2},
	}
}

type fakeVotes struct {
	votes []*models.VoteRecord
	err   error
	limit int
}

func (f *fakeVotes) ListVotes(_ context.Context, agentID string, limit int) ([]*models.VoteRecord, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.VoteRecord
	for _, v := range f.votes {
		if v.AgentID == agentID {
			out = append(out, v)
		}
	}
	return out, nil
}

func newTestServer(ctrl Controller, votes VoteLister) *Server {
	return NewServer(ctrl, votes, observability.NewMetricsRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestHealthAndStatus(t *testing.T) {
	s := newTestServer(&fakeController{}, &fakeVotes{})

	w := do(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var h supervisor.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "running", h.Status)

	w = do(t, s, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, w.Code)
	var st supervisor.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 7, st.Worker.TotalCyclesRun)
	assert.Equal(t, 2, st.Config.MaxConcurrency)
}

func TestTriggerCycle(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl, &fakeVotes{})

	w := do(t, s, http.MethodPost, "/cycle")
	require.Equal(t, http.StatusOK, w.Code)
	var summary models.CycleSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "cycle-1", summary.ID)
	assert.Equal(t, 2, summary.Executed)

	w = do(t, s, http.MethodPost, "/cycle/dry-run")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, ctrl.cycles)
	assert.Equal(t, 1, ctrl.dryRuns)
}

func TestTriggerCycleBusy(t *testing.T) {
	s := newTestServer(&fakeController{cycleErr: supervisor.ErrCycleInProgress}, &fakeVotes{})

	for _, path := range []string{"/cycle", "/cycle/dry-run"} {
		w := do(t, s, http.MethodPost, path)
		assert.Equal(t, http.StatusConflict, w.Code, path)
		assert.Contains(t, w.Body.String(), "cycle already in progress")
	}
}

func TestTriggerCycleError(t *testing.T) {
	s := newTestServer(&fakeController{cycleErr: errors.New("list tracked realms: no such table")}, &fakeVotes{})

	w := do(t, s, http.MethodPost, "/cycle")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "no such table")
}

func TestListVotes(t *testing.T) {
	sig := "sig-1"
	votes := &fakeVotes{votes: []*models.VoteRecord{
		{AgentID: "a1", ProposalAddress: "p1", Vote: models.VoteFor, TxSignature: &sig},
		{AgentID: "a2", ProposalAddress: "p1", Vote: models.VoteAbstain},
	}}
	s := newTestServer(&fakeController{}, votes)

	w := do(t, s, http.MethodGet, "/agents/a1/votes?limit=10")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Votes []models.VoteRecord `json:"votes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Votes, 1)
	assert.Equal(t, "sig-1", *body.Votes[0].TxSignature)
	assert.Equal(t, 10, votes.limit)

	w = do(t, s, http.MethodGet, "/agents/nobody/votes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"votes":[]}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/agents/a1/votes?limit=lots")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetrics(t *testing.T) {
	metrics := observability.NewMetricsRegistry()
	metrics.Counter(observability.PairsExecuted).Add(5)
	s := NewServer(&fakeController{}, &fakeVotes{}, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))

	w := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 5.0, snap["counter.pairs.executed"])
}
