package model

import "time"

// ChannelBinding is the membership record of one synced channel. A channel
// belongs to at most one sync group; the group itself is never stored, it is
// the set of bindings sharing a GroupID.
type ChannelBinding struct {
	ChannelID      string `gorm:"primaryKey;type:varchar(64)" json:"channel_id"`
	GuildID        string `gorm:"index;not null;type:varchar(64)" json:"guild_id"`
	GroupID        string `gorm:"index;not null;type:varchar(64)" json:"group_id"`
	Language       string `gorm:"not null;type:varchar(16)" json:"language"`
	DeliveryHandle string `gorm:"not null;type:text" json:"delivery_handle"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ChannelBinding) TableName() string {
	return "channel_bindings"
}

// GuildSettings holds per-guild configuration. LogsChannelID is empty until
// an admin sets a logs channel.
type GuildSettings struct {
	GuildID       string `gorm:"primaryKey;type:varchar(64)" json:"guild_id"`
	LogsChannelID string `gorm:"type:varchar(64)" json:"logs_channel_id"`

	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (GuildSettings) TableName() string {
	return "guild_settings"
}
