package model

import "time"

// WarningRecord counts moderation violations for one user in one guild.
// Created lazily on first violation; Count only ever grows.
type WarningRecord struct {
	GuildID      string    `gorm:"primaryKey;type:varchar(64)" json:"guild_id"`
	UserID       string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	Count        int64     `gorm:"not null;default:0" json:"count"`
	LastCategory string    `gorm:"type:varchar(32)" json:"last_category"`
	LastAt       time.Time `json:"last_at"`
}

func (WarningRecord) TableName() string {
	return "warning_records"
}
