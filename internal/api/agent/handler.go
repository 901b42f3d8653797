package agent

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"booking-app/internal/api/apierr"
	"booking-app/internal/app/http/middleware"
	"booking-app/internal/domain/agent"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/agentruntime"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HeaderCallbackSecret carries the shared secret on tool callbacks from the runtime.
const HeaderCallbackSecret = "X-Agent-Secret"

// Runtime is the agent runtime as seen by the chat endpoints.
type Runtime interface {
	CreateSession(ctx context.Context, agent, tenantID, userID string, state map[string]string) (*agentruntime.Session, error)
	SendMessage(ctx context.Context, sessionID, text string) (*agentruntime.Reply, error)
}

type Handler struct {
	DB             *gorm.DB
	Runtime        Runtime
	Executor       *agent.Executor
	CallbackSecret string
	Log            *zap.Logger
}

func NewHandler(db *gorm.DB, rt Runtime, exec *agent.Executor, callbackSecret string, log *zap.Logger) *Handler {
	return &Handler{DB: db, Runtime: rt, Executor: exec, CallbackSecret: callbackSecret, Log: log}
}

func (h *Handler) runtime() (Runtime, error) {
	if h.Runtime == nil {
		return nil, agentruntime.ErrNotConfigured
	}
	if c, ok := h.Runtime.(*agentruntime.Client); ok && !c.Configured() {
		return nil, agentruntime.ErrNotConfigured
	}
	return h.Runtime, nil
}

var knownAgents = map[string]bool{
	agentruntime.AgentConcierge:  true,
	agentruntime.AgentResearch:   true,
	agentruntime.AgentStorefront: true,
	agentruntime.AgentMarketing:  true,
	agentruntime.AgentBooking:    true,
}

// StartSession opens a chat with one of the onboarding agents.
func (h *Handler) StartSession(c *gin.Context) {
	var body struct {
		Agent string `json:"agent"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.Agent == "" {
		body.Agent = agentruntime.AgentConcierge
	}
	if !knownAgents[body.Agent] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown agent"})
		return
	}

	rt, err := h.runtime()
	if err != nil {
		apierr.Abort(c, h.Log, err, "Agent runtime unavailable")
		return
	}
	t := middleware.TenantFrom(c)
	state := map[string]string{
		"tenant_name":       t.Name,
		"onboarding_status": string(t.OnboardingStatus),
	}
	s, err := rt.CreateSession(c.Request.Context(), body.Agent, t.ID, c.GetString(middleware.CtxUserID), state)
	if err != nil {
		h.Log.Warn("agent session failed", zap.String("tenant_id", t.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Agent runtime error"})
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var body struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	rt, err := h.runtime()
	if err != nil {
		apierr.Abort(c, h.Log, err, "Agent runtime unavailable")
		return
	}
	reply, err := rt.SendMessage(c.Request.Context(), c.Param("id"), body.Text)
	if err != nil {
		h.Log.Warn("agent message failed", zap.String("session_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Agent runtime error"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, h.Executor.Catalog().All())
}

// RequireCallbackSecret guards the endpoints the agent runtime calls back into.
func (h *Handler) RequireCallbackSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderCallbackSecret)
		if h.CallbackSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.CallbackSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid agent secret"})
			return
		}
		c.Next()
	}
}

// InvokeTool executes a tool call on behalf of the runtime.
func (h *Handler) InvokeTool(c *gin.Context) {
	var body struct {
		TenantID  string          `json:"tenant_id" binding:"required"`
		SessionID string          `json:"session_id"`
		Args      json.RawMessage `json:"args"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	ctx := c.Request.Context()
	t, err := tenants.Get(ctx, h.DB, body.TenantID)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load tenant")
		return
	}
	if t.Status != tenants.StatusActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Tenant is suspended"})
		return
	}

	out, err := h.Executor.Invoke(ctx, t.ID, body.SessionID, c.Param("name"), body.Args)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Tool call failed")
		return
	}
	status := http.StatusOK
	if out.ProposalID != "" {
		status = http.StatusAccepted
	}
	c.JSON(status, out)
}

func (h *Handler) ListProposals(c *gin.Context) {
	out, err := h.Executor.ListPending(c.Request.Context(), c.GetString(middleware.CtxTenantID))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load proposals")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ConfirmProposal(c *gin.Context) {
	p, err := h.Executor.Confirm(c.Request.Context(), c.GetString(middleware.CtxTenantID), c.Param("id"), c.GetString(middleware.CtxUserID))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to confirm proposal")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) RejectProposal(c *gin.Context) {
	p, err := h.Executor.Reject(c.Request.Context(), c.GetString(middleware.CtxTenantID), c.Param("id"), c.GetString(middleware.CtxUserID))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to reject proposal")
		return
	}
	c.JSON(http.StatusOK, p)
}
