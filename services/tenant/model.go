package tenant

import (
	"time"
)

const (
	TokenNameLength  = 80
	MaxDecimals      = 18
	DomainNameLength = 253
)

// Tenant is a dapp using the shared ledger. Admin configures it; Operator is
// the identity allowed to register users and settle actions on its behalf.
type Tenant struct {
	ID             string    `gorm:"column:id;primaryKey" json:"tenant_id"`
	Code           string    `gorm:"column:code" json:"code"`
	Slug           string    `gorm:"column:slug;uniqueIndex" json:"slug"`
	Name           string    `gorm:"column:name" json:"name"`
	Admin          string    `gorm:"column:admin" json:"admin"`
	OfficialDomain string    `gorm:"column:official_domain" json:"official_domain"`
	Operator       string    `gorm:"column:operator" json:"operator"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// IsOfficial reports whether domain is the tenant's own domain.
func (t *Tenant) IsOfficial(domain string) bool {
	return domain == t.OfficialDomain
}

type PointToken struct {
	ID        string    `gorm:"column:id;primaryKey" json:"-"`
	TenantID  string    `gorm:"column:tenant_id;uniqueIndex:idx_point_token" json:"tenant_id"`
	Name      string    `gorm:"column:name;uniqueIndex:idx_point_token" json:"name"`
	Decimals  int       `gorm:"column:decimals" json:"decimals"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

type AddTenantInput struct {
	Name           string `json:"name" validate:"required"`
	Slug           string `json:"slug"`
	Admin          string `json:"admin" validate:"required"`
	OfficialDomain string `json:"official_domain"`
	Operator       string `json:"operator" validate:"required"`
}

type CreatePointInput struct {
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

func Models() []any {
	return []any{
		&Tenant{},
		&PointToken{},
	}
}
