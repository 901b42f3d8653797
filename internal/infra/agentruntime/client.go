package agentruntime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("agent runtime is not configured")

// Agents hosted by the runtime, one per onboarding phase.
const (
	AgentConcierge  = "concierge"
	AgentResearch   = "research"
	AgentStorefront = "storefront"
	AgentMarketing  = "marketing"
	AgentBooking    = "booking"
)

type Session struct {
	ID        string    `json:"id"`
	Agent     string    `json:"agent"`
	CreatedAt time.Time `json:"created_at"`
}

type Reply struct {
	SessionID string          `json:"session_id"`
	Text      string          `json:"text"`
	Events    json.RawMessage `json:"events,omitempty"`
}

type createSessionRequest struct {
	Agent    string            `json:"agent"`
	TenantID string            `json:"tenant_id"`
	UserID   string            `json:"user_id"`
	State    map[string]string `json:"state,omitempty"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type errorBody struct {
	Error string `json:"error"`
}

type Client struct {
	http *resty.Client
	log  *zap.Logger
}

// New returns nil when baseURL is empty; callers check with Configured.
func New(baseURL, token string, log *zap.Logger) *Client {
	if baseURL == "" {
		return nil
	}
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		h.SetAuthToken(token)
	}
	return &Client{http: h, log: log}
}

func (c *Client) Configured() bool {
	return c != nil && c.http != nil
}

func (c *Client) CreateSession(ctx context.Context, agent, tenantID, userID string, state map[string]string) (*Session, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var out Session
	var fail errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createSessionRequest{Agent: agent, TenantID: tenantID, UserID: userID, State: state}).
		SetResult(&out).
		SetError(&fail).
		Post("/v1/sessions")
	if err := check(resp, err, &fail); err != nil {
		c.log.Error("agent runtime create session failed", zap.String("agent", agent), zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendMessage(ctx context.Context, sessionID, text string) (*Reply, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var out Reply
	var fail errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("session", sessionID).
		SetBody(messageRequest{Text: text}).
		SetResult(&out).
		SetError(&fail).
		Post("/v1/sessions/{session}/messages")
	if err := check(resp, err, &fail); err != nil {
		c.log.Error("agent runtime message failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	if out.SessionID == "" {
		out.SessionID = sessionID
	}
	return &out, nil
}

func check(resp *resty.Response, err error, fail *errorBody) error {
	if err != nil {
		return fmt.Errorf("agent runtime: %w", err)
	}
	if resp.IsError() {
		msg := fail.Error
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("agent runtime: %d %s", resp.StatusCode(), msg)
	}
	return nil
}
