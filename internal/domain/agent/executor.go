package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrProposalDecided  = errors.New("proposal already decided")
	ErrProposalExpired  = errors.New("proposal expired")
)

// Outcome is what the agent gets back from a tool call.
type Outcome struct {
	Tool   string `json:"tool"`
	Tier   Tier   `json:"tier"`
	Result any    `json:"result,omitempty"`
	// ConfirmWithUser asks the agent to read the change back to the user.
	ConfirmWithUser bool       `json:"confirm_with_user,omitempty"`
	ProposalID      string     `json:"proposal_id,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

type Executor struct {
	db       *gorm.DB
	catalog  *Catalog
	handlers map[string]Handler
	log      *zap.Logger
	now      func() time.Time
}

func NewExecutor(db *gorm.DB, cat *Catalog, handlers map[string]Handler, log *zap.Logger) (*Executor, error) {
	for _, t := range cat.All() {
		if _, ok := handlers[t.Name]; !ok {
			return nil, fmt.Errorf("tool %s has no handler", t.Name)
		}
	}
	return &Executor{db: db, catalog: cat, handlers: handlers, log: log, now: time.Now}, nil
}

func (e *Executor) Catalog() *Catalog { return e.catalog }

// Invoke runs a tool call from the agent runtime. T1 and T2 tools execute
// immediately; T3 tools only record a pending proposal.
func (e *Executor) Invoke(ctx context.Context, tenantID, sessionID, name string, args json.RawMessage) (*Outcome, error) {
	tool, err := e.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := tool.CheckArgs(args); err != nil {
		return nil, err
	}

	out := &Outcome{Tool: tool.Name, Tier: tool.Tier}
	switch tool.Tier {
	case TierHardConfirm:
		p, err := e.propose(ctx, tenantID, sessionID, tool.Name, args)
		if err != nil {
			return nil, err
		}
		out.ProposalID = p.ID
		out.ExpiresAt = &p.ExpiresAt
		return out, nil
	case TierSoftConfirm:
		out.ConfirmWithUser = true
	}

	res, err := e.handlers[tool.Name](ctx, tenantID, args)
	if err != nil {
		e.log.Info("agent tool failed",
			zap.String("tenant_id", tenantID), zap.String("tool", tool.Name), zap.Error(err))
		return nil, err
	}
	e.log.Info("agent tool executed",
		zap.String("tenant_id", tenantID), zap.String("tool", tool.Name), zap.String("tier", string(tool.Tier)))
	out.Result = res
	return out, nil
}

func (e *Executor) propose(ctx context.Context, tenantID, sessionID, tool string, args json.RawMessage) (*Proposal, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	p := Proposal{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Tool:      tool,
		Args:      datatypes.JSON(args),
		Status:    ProposalPending,
		SessionID: sessionID,
		ExpiresAt: e.now().Add(ProposalTTL),
	}
	if err := e.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}
	e.log.Info("agent proposal created",
		zap.String("tenant_id", tenantID), zap.String("tool", tool), zap.String("proposal_id", p.ID))
	return &p, nil
}

func (e *Executor) load(ctx context.Context, tenantID, id string) (*Proposal, error) {
	var p Proposal
	if err := e.db.WithContext(ctx).First(&p, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, err
	}
	return &p, nil
}

// decide flips a pending, unexpired proposal to status. Only one caller can
// win the conditional update.
func (e *Executor) decide(ctx context.Context, p *Proposal, status ProposalStatus, userID string) error {
	now := e.now()
	if p.Status != ProposalPending {
		return ErrProposalDecided
	}
	if p.Expired(now) {
		err := e.db.WithContext(ctx).Model(&Proposal{}).
			Where("id = ? AND status = ?", p.ID, ProposalPending).
			Update("status", ProposalExpired).Error
		if err != nil {
			e.log.Warn("mark proposal expired", zap.String("proposal_id", p.ID), zap.Error(err))
		}
		return ErrProposalExpired
	}
	res := e.db.WithContext(ctx).Model(&Proposal{}).
		Where("id = ? AND status = ? AND expires_at > ?", p.ID, ProposalPending, now).
		Updates(map[string]interface{}{
			"status":     status,
			"decided_by": userID,
			"decided_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProposalDecided
	}
	p.Status = status
	p.DecidedBy = &userID
	p.DecidedAt = &now
	return nil
}

// Confirm executes a pending proposal on behalf of userID.
func (e *Executor) Confirm(ctx context.Context, tenantID, id, userID string) (*Proposal, error) {
	p, err := e.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := e.decide(ctx, p, ProposalConfirmed, userID); err != nil {
		return nil, err
	}

	h, ok := e.handlers[p.Tool]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, p.Tool)
	}
	res, runErr := h(ctx, tenantID, json.RawMessage(p.Args))
	if runErr != nil {
		p.Status = ProposalFailed
		p.Error = runErr.Error()
		if err := e.db.WithContext(ctx).Model(&Proposal{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{"status": ProposalFailed, "error": p.Error}).Error; err != nil {
			e.log.Error("mark proposal failed", zap.String("proposal_id", p.ID), zap.Error(err))
		}
		return p, runErr
	}

	body, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	p.Result = datatypes.JSON(body)
	if err := e.db.WithContext(ctx).Model(&Proposal{}).Where("id = ?", p.ID).
		Update("result", p.Result).Error; err != nil {
		e.log.Error("store proposal result", zap.String("proposal_id", p.ID), zap.Error(err))
	}
	e.log.Info("agent proposal confirmed",
		zap.String("tenant_id", tenantID), zap.String("tool", p.Tool), zap.String("proposal_id", p.ID))
	return p, nil
}

func (e *Executor) Reject(ctx context.Context, tenantID, id, userID string) (*Proposal, error) {
	p, err := e.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := e.decide(ctx, p, ProposalRejected, userID); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Executor) ListPending(ctx context.Context, tenantID string) ([]Proposal, error) {
	var out []Proposal
	err := e.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND expires_at > ?", tenantID, ProposalPending, e.now()).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// ExpireStale marks every overdue pending proposal expired.
func (e *Executor) ExpireStale(ctx context.Context) (int64, error) {
	res := e.db.WithContext(ctx).Model(&Proposal{}).
		Where("status = ? AND expires_at <= ?", ProposalPending, e.now()).
		Update("status", ProposalExpired)
	return res.RowsAffected, res.Error
}
