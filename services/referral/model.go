package referral

import "time"

// Edge links an invitee to its direct referrer and the referrer's own
// referrer. Chains are flattened at depth two.
type Edge struct {
	TenantID  string    `gorm:"column:tenant_id;primaryKey" json:"tenant_id"`
	Invitee   string    `gorm:"column:invitee;primaryKey" json:"invitee"`
	Referrer  string    `gorm:"column:referrer;index" json:"referrer"`
	Upline    string    `gorm:"column:upline" json:"upline,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Edge) TableName() string { return "referral_edges" }

type FollowerCounter struct {
	TenantID         string `gorm:"column:tenant_id;primaryKey" json:"tenant_id"`
	Address          string `gorm:"column:address;primaryKey" json:"address"`
	FollowerCount    int64  `gorm:"column:follower_count" json:"follower_count"`
	SubFollowerCount int64  `gorm:"column:sub_follower_count" json:"sub_follower_count"`
}

func Models() []any {
	return []any{
		&Edge{},
		&FollowerCounter{},
	}
}
