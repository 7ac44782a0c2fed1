package event

import (
	"time"

	"gorm.io/datatypes"
)

type Type string

const (
	TypePointsChanged             Type = "points_changed"
	TypeJoined                    Type = "joined"
	TypeReferralAccepted          Type = "referral_accepted"
	TypeInviterApplied            Type = "inviter_applied"
	TypeTenantAdded               Type = "tenant_added"
	TypePointCreated              Type = "point_created"
	TypeActionRulesChanged        Type = "action_rules_changed"
	TypeSelfIncreasingRuleChanged Type = "self_increasing_rule_changed"
)

// Outbox holds events written in the same transaction as the state they describe.
type Outbox struct {
	ID           string         `gorm:"column:id;primaryKey"`
	TenantID     string         `gorm:"column:tenant_id;index"`
	Type         Type           `gorm:"column:type"`
	Payload      datatypes.JSON `gorm:"column:payload"`
	Attempts     int            `gorm:"column:attempts"`
	LastError    string         `gorm:"column:last_error"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	DispatchedAt *time.Time     `gorm:"column:dispatched_at;index"`
}

func (Outbox) TableName() string { return "event_outbox" }

func Models() []any {
	return []any{&Outbox{}}
}
