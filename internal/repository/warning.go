package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/globot/syncbot/internal/model"
)

type IWarningRepository interface {
	Increment(ctx context.Context, guildID, userID, category string, at time.Time) (*model.WarningRecord, error)
	Find(ctx context.Context, guildID, userID string) (*model.WarningRecord, error)
	TotalCount(ctx context.Context) (int64, error)
}

type WarningRepository struct {
	db *gorm.DB
}

func NewWarningRepository(db *gorm.DB) IWarningRepository {
	return &WarningRepository{db: db}
}

// Increment bumps the violation count for (guild, user), creating the record
// on first violation, and returns the updated row.
func (r *WarningRepository) Increment(ctx context.Context, guildID, userID, category string, at time.Time) (*model.WarningRecord, error) {
	record := &model.WarningRecord{
		GuildID:      guildID,
		UserID:       userID,
		Count:        1,
		LastCategory: category,
		LastAt:       at,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"count":         gorm.Expr("warning_records.count + 1"),
			"last_category": category,
			"last_at":       at,
		}),
	}).Create(record).Error
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, guildID, userID)
}

// Find returns nil without error when the pair has no record.
func (r *WarningRepository) Find(ctx context.Context, guildID, userID string) (*model.WarningRecord, error) {
	var record model.WarningRecord
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *WarningRepository) TotalCount(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.WarningRecord{}).
		Select("COALESCE(SUM(count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
