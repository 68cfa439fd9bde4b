package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/globot/syncbot/internal/model"
)

type IBindingRepository interface {
	Create(ctx context.Context, binding *model.ChannelBinding) error
	Delete(ctx context.Context, channelID string) (bool, error)
	FindByChannel(ctx context.Context, channelID string) (*model.ChannelBinding, error)
	FindByGroup(ctx context.Context, groupID string) ([]*model.ChannelBinding, error)
	FindAll(ctx context.Context) ([]*model.ChannelBinding, error)
	UpsertGuildSettings(ctx context.Context, settings *model.GuildSettings) error
	FindGuildSettings(ctx context.Context, guildID string) (*model.GuildSettings, error)
}

type BindingRepository struct {
	db *gorm.DB
}

func NewBindingRepository(db *gorm.DB) IBindingRepository {
	return &BindingRepository{db: db}
}

func (r *BindingRepository) Create(ctx context.Context, binding *model.ChannelBinding) error {
	return r.db.WithContext(ctx).Create(binding).Error
}

// Delete removes the binding and reports whether one existed.
func (r *BindingRepository) Delete(ctx context.Context, channelID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("channel_id = ?", channelID).Delete(&model.ChannelBinding{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindByChannel returns nil without error when the channel has no binding.
func (r *BindingRepository) FindByChannel(ctx context.Context, channelID string) (*model.ChannelBinding, error) {
	var binding model.ChannelBinding
	err := r.db.WithContext(ctx).Where("channel_id = ?", channelID).First(&binding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

func (r *BindingRepository) FindByGroup(ctx context.Context, groupID string) ([]*model.ChannelBinding, error) {
	var bindings []*model.ChannelBinding
	if err := r.db.WithContext(ctx).Where("group_id = ?", groupID).Find(&bindings).Error; err != nil {
		return nil, err
	}
	return bindings, nil
}

func (r *BindingRepository) FindAll(ctx context.Context) ([]*model.ChannelBinding, error) {
	var bindings []*model.ChannelBinding
	if err := r.db.WithContext(ctx).Find(&bindings).Error; err != nil {
		return nil, err
	}
	return bindings, nil
}

func (r *BindingRepository) UpsertGuildSettings(ctx context.Context, settings *model.GuildSettings) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"logs_channel_id", "updated_at"}),
	}).Create(settings).Error
}

// FindGuildSettings returns nil without error when the guild has no settings row.
func (r *BindingRepository) FindGuildSettings(ctx context.Context, guildID string) (*model.GuildSettings, error) {
	var settings model.GuildSettings
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
