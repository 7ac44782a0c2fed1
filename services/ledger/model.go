package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Role tags why an address was paid.
type Role string

const (
	RoleUser    Role = "user"
	RoleKOL     Role = "kol"
	RoleInviter Role = "inviter"
)

func (r Role) String() string {
	switch r {
	case RoleUser, RoleKOL, RoleInviter:
		return string(r)
	default:
		return ""
	}
}

// BalanceKey addresses one balance row.
type BalanceKey struct {
	Address   string `json:"address" form:"address" validate:"required"`
	Domain    string `json:"domain" form:"domain" validate:"required"`
	Role      Role   `json:"role" form:"role" validate:"required,oneof=user kol inviter"`
	PointName string `json:"point_name" form:"point_name" validate:"required"`
}

type Balance struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Address    string    `gorm:"column:address;uniqueIndex:idx_balance_key"`
	Domain     string    `gorm:"column:domain;uniqueIndex:idx_balance_key"`
	Role       Role      `gorm:"column:role;uniqueIndex:idx_balance_key"`
	PointName  string    `gorm:"column:point_name;uniqueIndex:idx_balance_key"`
	Balance    Amount    `gorm:"column:balance;type:text"`
	EntryCount int64     `gorm:"column:entry_count"`
	LastHash   string    `gorm:"column:last_hash"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (Balance) TableName() string { return "balances" }

func (b *Balance) Key() BalanceKey {
	return BalanceKey{Address: b.Address, Domain: b.Domain, Role: b.Role, PointName: b.PointName}
}

// LedgerEntry is one credit in the per-balance hash chain.
type LedgerEntry struct {
	ID           string         `gorm:"column:id;primaryKey"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	TenantID     string         `gorm:"column:tenant_id;index"`
	Address      string         `gorm:"column:address;index:idx_entry_key"`
	Domain       string         `gorm:"column:domain;index:idx_entry_key"`
	Role         Role           `gorm:"column:role;index:idx_entry_key"`
	PointName    string         `gorm:"column:point_name;index:idx_entry_key"`
	Sequence     int64          `gorm:"column:sequence"`
	ActionName   string         `gorm:"column:action_name"`
	Amount       Amount         `gorm:"column:amount;type:text"`
	BalanceAfter Amount         `gorm:"column:balance_after;type:text"`
	Reference    string         `gorm:"column:reference"`
	OccurredAt   int64          `gorm:"column:occurred_at"`
	PreviousHash string         `gorm:"column:previous_hash"`
	Hash         string         `gorm:"column:hash"`
	Metadata     datatypes.JSON `gorm:"column:metadata"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (m *LedgerEntry) HashFields() map[string]string {
	return map[string]string{
		"id":            m.ID,
		"tenant_id":     m.TenantID,
		"address":       m.Address,
		"domain":        m.Domain,
		"role":          string(m.Role),
		"point_name":    m.PointName,
		"sequence":      fmt.Sprintf("%d", m.Sequence),
		"action_name":   m.ActionName,
		"amount":        m.Amount.String(),
		"balance_after": m.BalanceAfter.String(),
		"reference":     m.Reference,
		"occurred_at":   fmt.Sprintf("%d", m.OccurredAt),
		"previous_hash": m.PreviousHash,
	}
}

func (m *LedgerEntry) GenerateHash() string {
	fields := m.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// CheckpointKey addresses one accrual clock.
type CheckpointKey struct {
	TenantID string
	Address  string
	Domain   string
	Role     Role
}

type PrimaryCheckpoint struct {
	ID        string `gorm:"column:id;primaryKey"`
	TenantID  string `gorm:"column:tenant_id;uniqueIndex:idx_primary_checkpoint"`
	Address   string `gorm:"column:address;uniqueIndex:idx_primary_checkpoint"`
	Domain    string `gorm:"column:domain;uniqueIndex:idx_primary_checkpoint"`
	Role      Role   `gorm:"column:role;uniqueIndex:idx_primary_checkpoint"`
	SettledAt int64  `gorm:"column:settled_at"`
}

func (PrimaryCheckpoint) TableName() string { return "primary_checkpoints" }

type ReferralCheckpoint struct {
	ID        string `gorm:"column:id;primaryKey"`
	TenantID  string `gorm:"column:tenant_id;uniqueIndex:idx_referral_checkpoint"`
	Address   string `gorm:"column:address;uniqueIndex:idx_referral_checkpoint"`
	Domain    string `gorm:"column:domain;uniqueIndex:idx_referral_checkpoint"`
	Role      Role   `gorm:"column:role;uniqueIndex:idx_referral_checkpoint"`
	SettledAt int64  `gorm:"column:settled_at"`
}

func (ReferralCheckpoint) TableName() string { return "referral_checkpoints" }

// Models lists every table owned by this package.
func Models() []any {
	return []any{&Balance{}, &LedgerEntry{}, &PrimaryCheckpoint{}, &ReferralCheckpoint{}}
}
