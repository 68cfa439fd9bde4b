package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/globot/syncbot/internal/model"
	"github.com/globot/syncbot/internal/repository"
	"github.com/globot/syncbot/internal/translate"
)

var (
	ErrAlreadyBound       = errors.New("channel is already bound to a group")
	ErrNotBound           = errors.New("channel is not bound to any group")
	ErrInvalidLanguage    = errors.New("language code is not supported")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// IChannelGraph maintains the channel → (group, language, delivery handle)
// mapping. Groups are implicit: a group exists exactly while bindings carry
// its ID.
type IChannelGraph interface {
	Bind(ctx context.Context, channelID, guildID, groupID, language, deliveryHandle string) (*model.ChannelBinding, error)
	Unbind(ctx context.Context, channelID string) error
	SetLogsChannel(ctx context.Context, guildID, channelID string) error
	LogsChannel(ctx context.Context, guildID string) (string, error)
	GroupMembers(ctx context.Context, groupID string) ([]*model.ChannelBinding, error)
	PeersOf(ctx context.Context, channelID string) ([]*model.ChannelBinding, error)
	AllBindings(ctx context.Context) ([]*model.ChannelBinding, error)
}

// ChannelGraph implements IChannelGraph over the binding repository.
// Mutations serialize per guild so concurrent add/remove on sibling channels
// of one guild cannot race; reads take no lock.
type ChannelGraph struct {
	bindingRepo repository.IBindingRepository
	translator  translate.Translator

	mu         sync.Mutex
	guildLocks map[string]*sync.Mutex
}

func NewChannelGraph(bindingRepo repository.IBindingRepository, translator translate.Translator) IChannelGraph {
	return &ChannelGraph{
		bindingRepo: bindingRepo,
		translator:  translator,
		guildLocks:  make(map[string]*sync.Mutex),
	}
}

func (g *ChannelGraph) guildLock(guildID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.guildLocks[guildID]
	if !ok {
		lock = &sync.Mutex{}
		g.guildLocks[guildID] = lock
	}
	return lock
}

// Bind adds a channel to a group. The language is validated against the
// translation service's advertised set, queried lazily. Language is mandatory
// at bind time; a binding with no language would leave relay behavior
// undefined.
func (g *ChannelGraph) Bind(ctx context.Context, channelID, guildID, groupID, language, deliveryHandle string) (*model.ChannelBinding, error) {
	if language == "" {
		return nil, ErrInvalidLanguage
	}
	supported, err := g.translator.Languages(ctx)
	if err == nil && !slices.Contains(supported, language) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLanguage, language)
	}

	lock := g.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := g.bindingRepo.FindByChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyBound, channelID)
	}

	binding := &model.ChannelBinding{
		ChannelID:      channelID,
		GuildID:        guildID,
		GroupID:        groupID,
		Language:       language,
		DeliveryHandle: deliveryHandle,
	}
	if err := g.bindingRepo.Create(ctx, binding); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return binding, nil
}

// Unbind removes a channel from its group. When the last member leaves, the
// group simply ceases to exist; there is no group record to clean up.
func (g *ChannelGraph) Unbind(ctx context.Context, channelID string) error {
	binding, err := g.bindingRepo.FindByChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if binding == nil {
		return fmt.Errorf("%w: %s", ErrNotBound, channelID)
	}

	lock := g.guildLock(binding.GuildID)
	lock.Lock()
	defer lock.Unlock()

	deleted, err := g.bindingRepo.Delete(ctx, channelID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrNotBound, channelID)
	}
	return nil
}

// SetLogsChannel is idempotent and overwrites any prior logs channel.
func (g *ChannelGraph) SetLogsChannel(ctx context.Context, guildID, channelID string) error {
	lock := g.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	settings := &model.GuildSettings{GuildID: guildID, LogsChannelID: channelID}
	if err := g.bindingRepo.UpsertGuildSettings(ctx, settings); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// LogsChannel returns the guild's logs channel, empty when none is set.
func (g *ChannelGraph) LogsChannel(ctx context.Context, guildID string) (string, error) {
	settings, err := g.bindingRepo.FindGuildSettings(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if settings == nil {
		return "", nil
	}
	return settings.LogsChannelID, nil
}

func (g *ChannelGraph) GroupMembers(ctx context.Context, groupID string) ([]*model.ChannelBinding, error) {
	members, err := g.bindingRepo.FindByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return members, nil
}

// PeersOf returns the other members of the channel's group. Empty when the
// channel is unbound or the only member.
func (g *ChannelGraph) PeersOf(ctx context.Context, channelID string) ([]*model.ChannelBinding, error) {
	binding, err := g.bindingRepo.FindByChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if binding == nil {
		return nil, nil
	}
	members, err := g.GroupMembers(ctx, binding.GroupID)
	if err != nil {
		return nil, err
	}
	peers := make([]*model.ChannelBinding, 0, len(members))
	for _, m := range members {
		if m.ChannelID != channelID {
			peers = append(peers, m)
		}
	}
	return peers, nil
}

func (g *ChannelGraph) AllBindings(ctx context.Context) ([]*model.ChannelBinding, error) {
	bindings, err := g.bindingRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return bindings, nil
}
