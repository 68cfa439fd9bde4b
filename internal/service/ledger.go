package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/globot/syncbot/internal/model"
	"github.com/globot/syncbot/internal/repository"
)

// IWarningLedger keeps the per-guild, per-user violation trail.
type IWarningLedger interface {
	// RecordViolation increments the count for (guild, user), creating the
	// record on first violation.
	RecordViolation(ctx context.Context, guildID, userID, category string) (*model.WarningRecord, error)

	// Get returns the record for (guild, user). A user with no prior
	// violations yields a zero-count record, not an error.
	Get(ctx context.Context, guildID, userID string) (*model.WarningRecord, error)
}

// WarningLedger serializes increments per (guild, user) so simultaneous
// violations from one user cannot lose counts.
type WarningLedger struct {
	warningRepo repository.IWarningRepository

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex

	now func() time.Time
}

func NewWarningLedger(warningRepo repository.IWarningRepository) IWarningLedger {
	return &WarningLedger{
		warningRepo: warningRepo,
		userLocks:   make(map[string]*sync.Mutex),
		now:         time.Now,
	}
}

func (l *WarningLedger) userLock(guildID, userID string) *sync.Mutex {
	key := guildID + ":" + userID
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.userLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.userLocks[key] = lock
	}
	return lock
}

func (l *WarningLedger) RecordViolation(ctx context.Context, guildID, userID, category string) (*model.WarningRecord, error) {
	lock := l.userLock(guildID, userID)
	lock.Lock()
	defer lock.Unlock()

	record, err := l.warningRepo.Increment(ctx, guildID, userID, category, l.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return record, nil
}

func (l *WarningLedger) Get(ctx context.Context, guildID, userID string) (*model.WarningRecord, error) {
	record, err := l.warningRepo.Find(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if record == nil {
		return &model.WarningRecord{GuildID: guildID, UserID: userID, Count: 0}, nil
	}
	return record, nil
}
