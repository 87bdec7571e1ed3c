package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Promptonauts/ballot/pkg/models"
	"github.com/Promptonauts/ballot/pkg/observability"
	"github.com/Promptonauts/ballot/pkg/supervisor"
	"github.com/gin-gonic/gin"
)

type Controller interface {
	TriggerCycle(ctx context.Context) (*models.CycleSummary, error)
	TriggerDryRun(ctx context.Context) (*models.CycleSummary, error)
	Health() supervisor.Health
	Status() supervisor.Status
}

type VoteLister interface {
	ListVotes(ctx context.Context, agentID string, limit int) ([]*models.VoteRecord, error)
}

type Server struct {
	ctrl    Controller
	votes   VoteLister
	metrics *observability.MetricsRegistry
	logger  *slog.Logger
	engine  *gin.Engine
}

func NewServer(ctrl Controller, votes VoteLister, metrics *observability.MetricsRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetricsRegistry()
	}
	s := &Server{
		ctrl:    ctrl,
		votes:   votes,
		metrics: metrics,
		logger:  logger.With("component", "api"),
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLog())
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/metrics", s.handleMetrics)
	s.engine.POST("/cycle", s.handleTriggerCycle)
	s.engine.POST("/cycle/dry-run", s.handleTriggerDryRun)
	s.engine.GET("/agents/:id/votes", s.handleListVotes)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Health())
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleTriggerCycle(c *gin.Context) {
	s.trigger(c, s.ctrl.TriggerCycle)
}

func (s *Server) handleTriggerDryRun(c *gin.Context) {
	s.trigger(c, s.ctrl.TriggerDryRun)
}

func (s *Server) trigger(c *gin.Context, run func(context.Context) (*models.CycleSummary, error)) {
	// A dropped client must not abandon a cycle halfway.
	summary, err := run(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, supervisor.ErrCycleInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleListVotes(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	votes, err := s.votes.ListVotes(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.logger.Error("list votes failed", "agent_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list votes failed"})
		return
	}
	if votes == nil {
		votes = []*models.VoteRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}
