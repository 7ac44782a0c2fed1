package event

import (
	"smallbiznis-points/services/ledger"
)

// Event is a payload that can be written to the outbox.
type Event interface {
	EventType() Type
}

type PointsChangedDetail struct {
	TenantID       string        `json:"tenant_id"`
	Receiver       string        `json:"receiver"`
	Domain         string        `json:"domain"`
	Role           ledger.Role   `json:"role"`
	ActionName     string        `json:"action_name"`
	PointName      string        `json:"point_name"`
	IncreaseAmount ledger.Amount `json:"increase_amount"`
	Balance        ledger.Amount `json:"balance"`
}

type PointsChanged struct {
	Details []PointsChangedDetail `json:"details"`
}

func (PointsChanged) EventType() Type { return TypePointsChanged }

type Joined struct {
	TenantID   string `json:"tenant_id"`
	Domain     string `json:"domain"`
	Registrant string `json:"registrant"`
}

func (Joined) EventType() Type { return TypeJoined }

type ReferralAccepted struct {
	TenantID string `json:"tenant_id"`
	Referrer string `json:"referrer"`
	Invitee  string `json:"invitee"`
	Upline   string `json:"upline,omitempty"`
}

func (ReferralAccepted) EventType() Type { return TypeReferralAccepted }

// InviterApplied is the attribution-changed event of an advocate application.
type InviterApplied struct {
	TenantID string `json:"tenant_id"`
	Domain   string `json:"domain"`
	Invitee  string `json:"invitee"`
	Inviter  string `json:"inviter"`
}

func (InviterApplied) EventType() Type { return TypeInviterApplied }

type TenantAdded struct {
	TenantID       string `json:"tenant_id"`
	Code           string `json:"code"`
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	Admin          string `json:"admin"`
	OfficialDomain string `json:"official_domain"`
	Operator       string `json:"operator"`
}

func (TenantAdded) EventType() Type { return TypeTenantAdded }

type PointCreated struct {
	TenantID  string `json:"tenant_id"`
	PointName string `json:"point_name"`
	Decimals  int    `json:"decimals"`
}

func (PointCreated) EventType() Type { return TypePointCreated }

type ActionRule struct {
	ActionName      string `json:"action_name"`
	PointName       string `json:"point_name"`
	UserAmount      int64  `json:"user_amount"`
	KolFraction     int64  `json:"kol_fraction"`
	InviterFraction int64  `json:"inviter_fraction"`
	Proportional    bool   `json:"proportional"`
}

type ActionRulesChanged struct {
	TenantID string       `json:"tenant_id"`
	Rules    []ActionRule `json:"rules"`
}

func (ActionRulesChanged) EventType() Type { return TypeActionRulesChanged }

type SelfIncreasingRuleChanged struct {
	TenantID        string `json:"tenant_id"`
	PointName       string `json:"point_name"`
	UserRate        int64  `json:"user_rate"`
	KolFraction     int64  `json:"kol_fraction"`
	InviterFraction int64  `json:"inviter_fraction"`
	Proportional    bool   `json:"proportional"`
}

func (SelfIncreasingRuleChanged) EventType() Type { return TypeSelfIncreasingRuleChanged }
