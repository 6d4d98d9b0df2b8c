package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

func TestIdentity_FullProfileThenAliasUpdate(t *testing.T) {
	store := setupStore(t)
	bus := feed.NewBus()
	var updates []string
	bus.Subscribe(feed.IdentityUpdated, func(_ context.Context, ev *feed.Event) error {
		updates = append(updates, ev.Data.(*feed.IdentityUpdatedData).PublicSigningAddress)
		return nil
	})
	s := NewIdentityStrategy(store.Identity(), bus)

	full := validated(t, &types.FullIdentityPayload{
		PublicSigningAddress: "0xaa",
		Alias:                "Alice",
		ShortAlias:           "alice",
		PublicEncryptAddress: "0xenc",
		IsPublic:             true,
	})
	require.NoError(t, s.Handle(context.Background(), 3, full))

	profile, err := store.Identity().Profile(context.Background(), "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Alias)
	assert.Equal(t, types.BlockIndex(3), profile.BlockIndex)

	update := validated(t, &types.UpdateIdentityPayload{PublicSigningAddress: "0xaa", Alias: "Alicia"})
	require.NoError(t, s.Handle(context.Background(), 4, update))

	profile, err = store.Identity().Profile(context.Background(), "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", profile.Alias)
	// The update keeps everything but the alias.
	assert.Equal(t, "alice", profile.ShortAlias)
	assert.True(t, profile.IsPublic)
	assert.Equal(t, types.BlockIndex(4), profile.BlockIndex)

	assert.Equal(t, []string{"0xaa", "0xaa"}, updates)
}

func TestIdentity_SecondFullProfileKeepsFirst(t *testing.T) {
	store := setupStore(t)
	bus := feed.NewBus()
	var updates int
	bus.Subscribe(feed.IdentityUpdated, func(_ context.Context, _ *feed.Event) error {
		updates++
		return nil
	})
	s := NewIdentityStrategy(store.Identity(), bus)

	first := validated(t, &types.FullIdentityPayload{
		PublicSigningAddress: "0xaa",
		Alias:                "Alice",
		ShortAlias:           "alice",
	})
	require.NoError(t, s.Handle(context.Background(), 3, first))

	// A second registration for the same address is a no-op.
	second := validated(t, &types.FullIdentityPayload{
		PublicSigningAddress: "0xaa",
		Alias:                "Mallory",
		ShortAlias:           "mallory",
	})
	require.NoError(t, s.Handle(context.Background(), 4, second))

	profile, err := store.Identity().Profile(context.Background(), "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Alias)
	assert.Equal(t, "alice", profile.ShortAlias)
	assert.Equal(t, types.BlockIndex(3), profile.BlockIndex)
	assert.Equal(t, 1, updates)
}

func TestIdentity_BlankAliasUpdateIsSkipped(t *testing.T) {
	store := setupStore(t)
	bus := feed.NewBus()
	var updates int
	bus.Subscribe(feed.IdentityUpdated, func(_ context.Context, _ *feed.Event) error {
		updates++
		return nil
	})
	s := NewIdentityStrategy(store.Identity(), bus)

	full := validated(t, &types.FullIdentityPayload{
		PublicSigningAddress: "0xaa",
		Alias:                "Alice",
		ShortAlias:           "alice",
	})
	require.NoError(t, s.Handle(context.Background(), 3, full))

	blank := validated(t, &types.UpdateIdentityPayload{PublicSigningAddress: "0xaa", Alias: "   "})
	require.NoError(t, s.Handle(context.Background(), 4, blank))

	profile, err := store.Identity().Profile(context.Background(), "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Alias)
	assert.Equal(t, types.BlockIndex(3), profile.BlockIndex)
	assert.Equal(t, 1, updates)
}

func TestIdentity_UpdateForUnknownProfileIsSkipped(t *testing.T) {
	store := setupStore(t)
	bus := feed.NewBus()
	var updates int
	bus.Subscribe(feed.IdentityUpdated, func(_ context.Context, _ *feed.Event) error {
		updates++
		return nil
	})
	s := NewIdentityStrategy(store.Identity(), bus)

	update := validated(t, &types.UpdateIdentityPayload{PublicSigningAddress: "0xghost", Alias: "nobody"})
	require.NoError(t, s.Handle(context.Background(), 1, update))
	assert.Zero(t, updates)

	_, err := store.Identity().Profile(context.Background(), "0xghost")
	require.ErrorIs(t, err, iface.ErrNotFound)
}
