package agent

import (
	"time"

	"gorm.io/datatypes"
)

type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalConfirmed ProposalStatus = "confirmed"
	ProposalRejected  ProposalStatus = "rejected"
	ProposalExpired   ProposalStatus = "expired"
	ProposalFailed    ProposalStatus = "failed"
)

// ProposalTTL is how long a T3 proposal waits for a decision.
const ProposalTTL = 10 * time.Minute

// Proposal is a hard-confirm tool call parked until a tenant admin decides.
type Proposal struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string         `gorm:"type:uuid;not null;index:idx_agent_proposals_tenant_status,priority:1" json:"tenant_id"`
	Tool      string         `gorm:"not null" json:"tool"`
	Args      datatypes.JSON `gorm:"type:jsonb;not null" json:"args"`
	Status    ProposalStatus `gorm:"type:varchar(16);not null;index:idx_agent_proposals_tenant_status,priority:2" json:"status"`
	Result    datatypes.JSON `gorm:"type:jsonb" json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	DecidedBy *string        `json:"decided_by,omitempty"`
	DecidedAt *time.Time     `json:"decided_at,omitempty"`
	ExpiresAt time.Time      `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Proposal) TableName() string { return "agent_proposals" }

func (p *Proposal) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
