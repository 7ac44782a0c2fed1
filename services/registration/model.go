package registration

import "time"

// Registration binds an address to the domain it joined a tenant through.
// It is written once.
type Registration struct {
	TenantID  string    `gorm:"column:tenant_id;primaryKey" json:"tenant_id"`
	Address   string    `gorm:"column:address;primaryKey" json:"address"`
	Domain    string    `gorm:"column:domain" json:"domain"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func Models() []any {
	return []any{&Registration{}}
}
