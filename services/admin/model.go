package admin

import "time"

// SettingsID is the primary key of the singleton settings row.
const SettingsID = "settings"

type Settings struct {
	ID                 string    `gorm:"column:id;primaryKey" json:"-"`
	Admin              string    `gorm:"column:admin" json:"admin"`
	MaxApplyCount      int       `gorm:"column:max_apply_count" json:"max_apply_count"`
	MaxRecordListCount int       `gorm:"column:max_record_list_count" json:"max_record_list_count"`
	Initialized        bool      `gorm:"column:initialized" json:"initialized"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Settings) TableName() string { return "admin_settings" }

type ReservedDomain struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Domain    string    `gorm:"column:domain;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (ReservedDomain) TableName() string { return "reserved_domains" }

func Models() []any {
	return []any{&Settings{}, &ReservedDomain{}}
}
