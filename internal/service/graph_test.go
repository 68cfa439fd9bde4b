package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph() (IChannelGraph, *memBindingRepo) {
	repo := newMemBindingRepo()
	return NewChannelGraph(repo, newFakeTranslator("en", "fr", "es", "de")), repo
}

func TestBind(t *testing.T) {
	graph, _ := newTestGraph()
	ctx := context.Background()

	binding, err := graph.Bind(ctx, "chanA", "guild1", "group1", "en", "wh://a")
	require.NoError(t, err)
	assert.Equal(t, "chanA", binding.ChannelID)
	assert.Equal(t, "group1", binding.GroupID)
	assert.Equal(t, "en", binding.Language)
}

func TestBind_AlreadyBound(t *testing.T) {
	graph, _ := newTestGraph()
	ctx := context.Background()

	_, err := graph.Bind(ctx, "chanA", "guild1", "group1", "en", "wh://a")
	require.NoError(t, err)

	_, err = graph.Bind(ctx, "chanA", "guild1", "group2", "fr", "wh://a2")
	assert.ErrorIs(t, err, ErrAlreadyBound)
}

func TestBind_InvalidLanguage(t *testing.T) {
	graph, _ := newTestGraph()
	ctx := context.Background()

	_, err := graph.Bind(ctx, "chanA", "guild1", "group1", "xx", "wh://a")
	assert.ErrorIs(t, err, ErrInvalidLanguage)

	_, err = graph.Bind(ctx, "chanA", "guild1", "group1", "", "wh://a")
	assert.ErrorIs(t, err, ErrInvalidLanguage)
}

func TestUnbind_NotBound(t *testing.T) {
	graph, _ := newTestGraph()
	err := graph.Unbind(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotBound)
}

func TestUnbindThenRebind_Equivalent(t *testing.T) {
	graph, _ := newTestGraph()
	ctx := context.Background()

	first, err := graph.Bind(ctx, "chanA", "guild1", "group1", "en", "wh://a")
	require.NoError(t, err)
	require.NoError(t, graph.Unbind(ctx, "chanA"))

	second, err := graph.Bind(ctx, "chanA", "guild1", "group1", "en", "wh://a")
	require.NoError(t, err)

	assert.Equal(t, first.GroupID, second.GroupID)
	assert.Equal(t, first.Language, second.Language)
	assert.Equal(t, first.DeliveryHandle, second.DeliveryHandle)
}

func TestPeersOf(t *testing.T) {
	graph, _ := newTestGraph()
	ctx := context.Background()

	for i, lang := range []string{"en", "fr", "es"} {
		_, err := graph.Bind(ctx, fmt.Sprintf("chan%d", i), "guild1", "group1", lang, "wh://x")
		require.NoError(t, err)
	}
	_, err := graph.Bind(ctx, "other", "guild2", "group2", "de", "wh://y")
	require.NoError(t, err)

	peers, err := graph.PeersOf(ctx, "chan0")
	require.NoError(t, err)
	require.Len(t, peers, 2)
	for _, p := range peers {
		assert.NotEqual(t, "chan0", p.ChannelID)
		assert.Equal(t, "group1", p.GroupID)
	}
}

func TestPeersOf_UnboundChannel(t *testing.T) {
	graph, _ := newTestGraph()
	peers, err := graph.PeersOf(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestPeersOf_SingleMemberGroup(t *testing.T) {
	graph, _ := newTestGraph()
	ctx := context.Background()

	_, err := graph.Bind(ctx, "lonely", "guild1", "group1", "en", "wh://a")
	require.NoError(t, err)

	peers, err := graph.PeersOf(ctx, "lonely")
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestGroupDissolvesWithLastMember(t *testing.T) {
	graph, _ := newTestGraph()
	ctx := context.Background()

	_, err := graph.Bind(ctx, "chanA", "guild1", "group1", "en", "wh://a")
	require.NoError(t, err)
	require.NoError(t, graph.Unbind(ctx, "chanA"))

	members, err := graph.GroupMembers(ctx, "group1")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestSetLogsChannel_IdempotentOverwrite(t *testing.T) {
	graph, _ := newTestGraph()
	ctx := context.Background()

	require.NoError(t, graph.SetLogsChannel(ctx, "guild1", "logs1"))
	require.NoError(t, graph.SetLogsChannel(ctx, "guild1", "logs1"))
	require.NoError(t, graph.SetLogsChannel(ctx, "guild1", "logs2"))

	got, err := graph.LogsChannel(ctx, "guild1")
	require.NoError(t, err)
	assert.Equal(t, "logs2", got)
}

func TestLogsChannel_UnsetGuild(t *testing.T) {
	graph, _ := newTestGraph()
	got, err := graph.LogsChannel(context.Background(), "guildX")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBind_ConcurrentSameChannel(t *testing.T) {
	graph, repo := newTestGraph()
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = graph.Bind(ctx, "chanA", "guild1", "group1", "en", "wh://a")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, repo.bindings, 1)
}
