package advocate

import "time"

// Edge attributes a domain to the KOL that applied for it. Domains are
// unique across tenants. Sponsor is empty when the owner applied for itself.
type Edge struct {
	Domain    string    `gorm:"column:domain;primaryKey" json:"domain"`
	TenantID  string    `gorm:"column:tenant_id;index" json:"tenant_id"`
	Owner     string    `gorm:"column:owner" json:"owner"`
	Sponsor   string    `gorm:"column:sponsor" json:"sponsor,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Edge) TableName() string { return "advocate_edges" }

type ApplyCounter struct {
	TenantID string `gorm:"column:tenant_id;primaryKey" json:"tenant_id"`
	Address  string `gorm:"column:address;primaryKey" json:"address"`
	Count    int64  `gorm:"column:count" json:"count"`
}

// InvitationCounter holds the accrual multipliers of a domain's KOL
// (InvitationCount) and of its sponsor (TierTwoCount).
type InvitationCounter struct {
	TenantID        string `gorm:"column:tenant_id;primaryKey" json:"tenant_id"`
	Address         string `gorm:"column:address;primaryKey" json:"address"`
	Domain          string `gorm:"column:domain;primaryKey" json:"domain"`
	InvitationCount int64  `gorm:"column:invitation_count" json:"invitation_count"`
	TierTwoCount    int64  `gorm:"column:tier_two_count" json:"tier_two_count"`
}

func Models() []any {
	return []any{
		&Edge{},
		&ApplyCounter{},
		&InvitationCounter{},
	}
}
