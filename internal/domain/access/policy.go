package access

import (
	"booking-app/internal/domain/tenants"
)

type Policy struct {
	State        AccessState `json:"state"`
	PublicMode   PublicMode  `json:"public_mode"`
	Capabilities []string    `json:"capabilities"`
}

func ComputeState(t *tenants.Tenant) AccessState {
	if t.Status != tenants.StatusActive {
		return AccessSuspended
	}
	if !t.CanAcceptPayments() {
		return AccessSetup
	}
	return AccessLive
}

func ComputePolicy(t *tenants.Tenant) Policy {
	state := ComputeState(t)
	return Policy{
		State:        state,
		PublicMode:   PublicModeFromState(state),
		Capabilities: CapabilitiesFor(state),
	}
}

func (p Policy) Can(capability string) bool {
	for _, c := range p.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
