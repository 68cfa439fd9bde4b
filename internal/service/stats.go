package service

import (
	"context"
	"fmt"

	"github.com/globot/syncbot/internal/repository"
)

// Snapshot is the administrative rollup over the sync state.
type Snapshot struct {
	ActiveChannels    int            `json:"active_channels"`
	ActiveGroups      int            `json:"active_groups"`
	ActiveGuilds      int            `json:"active_guilds"`
	LanguageHistogram map[string]int `json:"language_histogram"`
	TotalWarnings     int64          `json:"total_warnings"`
}

type IStatsAggregator interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// StatsAggregator computes the snapshot on demand; admin traffic is rare
// enough that caching would buy nothing.
type StatsAggregator struct {
	bindingRepo repository.IBindingRepository
	warningRepo repository.IWarningRepository
}

func NewStatsAggregator(bindingRepo repository.IBindingRepository, warningRepo repository.IWarningRepository) IStatsAggregator {
	return &StatsAggregator{bindingRepo: bindingRepo, warningRepo: warningRepo}
}

func (s *StatsAggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	bindings, err := s.bindingRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	groups := make(map[string]struct{})
	guilds := make(map[string]struct{})
	histogram := make(map[string]int)
	for _, b := range bindings {
		groups[b.GroupID] = struct{}{}
		guilds[b.GuildID] = struct{}{}
		histogram[b.Language]++
	}

	total, err := s.warningRepo.TotalCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return &Snapshot{
		ActiveChannels:    len(bindings),
		ActiveGroups:      len(groups),
		ActiveGuilds:      len(guilds),
		LanguageHistogram: histogram,
		TotalWarnings:     total,
	}, nil
}
