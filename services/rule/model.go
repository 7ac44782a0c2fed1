package rule

import (
	"time"
)

// Denominator turns fractions into basis points.
const Denominator int64 = 10000

// Well-known action names settled by the engine itself.
const (
	ActionJoin           = "join"
	ActionAcceptReferral = "accept_referral"
	ActionApply          = "apply"
)

// ActionRule splits an action's award among User, KOL and Inviter. When
// Proportional is set the fractions are basis points of the user amount,
// otherwise they are absolute amounts.
type ActionRule struct {
	ID              string    `gorm:"column:id;primaryKey" json:"-"`
	TenantID        string    `gorm:"column:tenant_id;uniqueIndex:idx_action_rule" json:"tenant_id"`
	ActionName      string    `gorm:"column:action_name;uniqueIndex:idx_action_rule" json:"action_name"`
	PointName       string    `gorm:"column:point_name" json:"point_name"`
	UserAmount      int64     `gorm:"column:user_amount" json:"user_amount"`
	KolFraction     int64     `gorm:"column:kol_fraction" json:"kol_fraction"`
	InviterFraction int64     `gorm:"column:inviter_fraction" json:"inviter_fraction"`
	Proportional    bool      `gorm:"column:proportional" json:"proportional"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
}

// SelfIncreasingRule drives continuous accrual; there is at most one per tenant.
type SelfIncreasingRule struct {
	TenantID        string    `gorm:"column:tenant_id;primaryKey" json:"tenant_id"`
	PointName       string    `gorm:"column:point_name" json:"point_name"`
	UserRate        int64     `gorm:"column:user_rate" json:"user_rate"`
	KolFraction     int64     `gorm:"column:kol_fraction" json:"kol_fraction"`
	InviterFraction int64     `gorm:"column:inviter_fraction" json:"inviter_fraction"`
	Proportional    bool      `gorm:"column:proportional" json:"proportional"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

type ActionRuleInput struct {
	ActionName      string `json:"action_name"`
	PointName       string `json:"point_name"`
	UserAmount      int64  `json:"user_amount"`
	KolFraction     int64  `json:"kol_fraction"`
	InviterFraction int64  `json:"inviter_fraction"`
	Proportional    bool   `json:"proportional"`
}

type SelfIncreasingRuleInput struct {
	PointName       string `json:"point_name"`
	UserRate        int64  `json:"user_rate"`
	KolFraction     int64  `json:"kol_fraction"`
	InviterFraction int64  `json:"inviter_fraction"`
	Proportional    bool   `json:"proportional"`
}

func Models() []any {
	return []any{
		&ActionRule{},
		&SelfIncreasingRule{},
	}
}
