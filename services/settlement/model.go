package settlement

import (
	"smallbiznis-points/services/event"
	"smallbiznis-points/services/ledger"
)

type ApplyInput struct {
	Domain  string  `json:"domain"`
	Invitee string  `json:"invitee"`
	Inviter *string `json:"inviter,omitempty"`
}

type JoinInput struct {
	Domain     string `json:"domain"`
	Registrant string `json:"registrant"`
}

type AcceptReferralInput struct {
	Referrer string `json:"referrer"`
	Invitee  string `json:"invitee"`
}

type SettleEntry struct {
	User         string         `json:"user"`
	SourcePoints *ledger.Amount `json:"source_points,omitempty"`
}

type SettleInput struct {
	Action string `json:"action"`
	SettleEntry
}

type BatchSettleInput struct {
	Action  string        `json:"action"`
	Entries []SettleEntry `json:"entries"`
}

// Result lists every non-zero credit made by one call.
type Result struct {
	Reference string                      `json:"reference,omitempty"`
	Details   []event.PointsChangedDetail `json:"details"`
}

// BalanceView is a balance projected to the current time.
type BalanceView struct {
	ledger.BalanceKey
	TenantID      string        `json:"tenant_id"`
	Balance       ledger.Amount `json:"balance"`
	Settled       ledger.Amount `json:"settled"`
	LastUpdatedAt int64         `json:"last_updated_at,omitempty"`
}
