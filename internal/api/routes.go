// Package api wires the engine's HTTP and websocket transport: gin routes
// for rule CRUD and fact ingestion, and a websocket hub streaming
// diagnostics events and action side effects, grounded on the teacher's
// gin+gorilla/websocket routes.go/websocket.go pair.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/rete-engine/internal/config"
	"github.com/rawblock/rete-engine/internal/engerr"
	"github.com/rawblock/rete-engine/internal/engine"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/monitor"
	"github.com/rawblock/rete-engine/internal/rule"
)

// Handler bundles the engine and its websocket hub behind gin routes.
type Handler struct {
	eng *engine.Engine
	hub *Hub
	cfg *config.AppConfig
}

// SetupRouter builds the gin engine exposing the rule/fact/stats/ws
// surface over eng, broadcasting through hub.
func SetupRouter(eng *engine.Engine, hub *Hub, cfg *config.AppConfig) *gin.Engine {
	r := gin.Default()

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := &Handler{eng: eng, hub: hub, cfg: cfg}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/ws", hub.Subscribe)
	}

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware(cfg.Security.AuthRequired, cfg.Security.AuthToken))
	if cfg.Security.RateLimitingEnabled {
		protected.Use(NewRateLimiter(int(cfg.Security.RateLimitRPM), 10).Middleware())
	}
	{
		protected.POST("/rules", h.handleAddRule)
		protected.PUT("/rules/:id", h.handleUpdateRule)
		protected.DELETE("/rules/:id", h.handleRemoveRule)
		protected.POST("/facts", h.handleProcessFacts)
		protected.GET("/stats", h.handleStats)
	}

	return r
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "operational",
		"engine":  "rete-engine",
		"version": h.cfg.Service.ServiceVersion,
	})
}

func (h *Handler) handleAddRule(c *gin.Context) {
	var r rule.Rule
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule body", "details": err.Error()})
		return
	}
	if err := h.eng.AddRule(r); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "added", "id": r.ID})
}

func (h *Handler) handleUpdateRule(c *gin.Context) {
	id, err := parseRuleID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var r rule.Rule
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule body", "details": err.Error()})
		return
	}
	r.ID = id

	if err := h.eng.UpdateRule(r); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "id": r.ID})
}

func (h *Handler) handleRemoveRule(c *gin.Context) {
	id, err := parseRuleID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.eng.RemoveRule(id); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "id": id})
}

// processFactsRequest is POST /facts's body: a batch of facts and an
// optional deadline, realizing spec.md §6's process_facts(facts[], deadline?).
type processFactsRequest struct {
	Facts      []factmodel.Fact `json:"facts"`
	DeadlineMs *int64           `json:"deadlineMs,omitempty"`
}

func (h *Handler) handleProcessFacts(c *gin.Context) {
	var req processFactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid facts body", "details": err.Error()})
		return
	}
	if len(req.Facts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "facts must be non-empty"})
		return
	}

	ctx := c.Request.Context()
	if req.DeadlineMs != nil && *req.DeadlineMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*req.DeadlineMs)*time.Millisecond)
		defer cancel()
	}

	result := h.eng.ProcessFacts(ctx, req.Facts)
	c.JSON(http.StatusOK, gin.H{
		"activations":          result.Activations,
		"stats":                result.Stats,
		"timeout":              result.Timeout,
		"cascadeDepthExceeded": result.CascadeDepthExceeded,
	})
}

func (h *Handler) handleStats(c *gin.Context) {
	stats := h.eng.GetStats()
	counterSnap := h.eng.Counters().Snapshot()
	score := monitor.HealthScore(counterSnap, 0)

	c.JSON(http.StatusOK, gin.H{
		"engine":   stats,
		"counters": counterSnap,
		"health": gin.H{
			"score":  score,
			"status": monitor.HealthStatus(score),
		},
		"alerts": h.eng.Alerts().ActiveAlerts(),
	})
}

func parseRuleID(raw string) (rule.RuleID, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, engerr.New(engerr.Validation, "medium", "rule id must be a non-negative integer")
	}
	return rule.RuleID(id), nil
}

// writeEngineError renders an error returned by the engine, mapping its
// engerr.Category onto an HTTP status: validation -> 400, reference -> 404,
// resource_exhaustion -> 429, cascade_depth_exceeded -> 422, timeout -> 504,
// any other category (and any error that is not an EngineError) -> 500.
func writeEngineError(c *gin.Context, err error) {
	eerr, ok := err.(*engerr.EngineError)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch eerr.Category {
	case engerr.Validation:
		status = http.StatusBadRequest
	case engerr.Reference:
		status = http.StatusNotFound
	case engerr.ResourceExhausted:
		status = http.StatusTooManyRequests
	case engerr.Timeout:
		status = http.StatusGatewayTimeout
	case engerr.CascadeDepth:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, eerr)
}
