package context

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usize/monument/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ns.db")
	s, err := store.Create(context.Background(), "garden", path, 3, 3, "paint it all red", 10)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuild_IncludesCoreSections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.RegisterActor(ctx, "alice", 1, 1, "N", []string{"MOVE", "PAINT", "SPEAK"}, "explore", "", "secret")
	require.NoError(t, err)

	b := NewBuilder()
	snap, err := b.Build(ctx, s, "garden", "alice", ClampHistoryLength(0), ClampChatLength(0, 5))
	require.NoError(t, err)

	assert.Equal(t, "garden", snap.Namespace)
	assert.Equal(t, int64(0), snap.SuperTick)
	assert.Equal(t, store.PhaseSetup, snap.Phase)
	assert.Contains(t, snap.HUD, "-- You (alice) --")
	assert.Contains(t, snap.HUD, "Position: (1,1)")
	assert.Contains(t, snap.HUD, "Instructions: explore")
	assert.Contains(t, snap.HUD, "-- Available actions --")
	assert.Contains(t, snap.HUD, "MOVE <N|S|E|W>")
	assert.NotContains(t, snap.HUD, "Supervisor view")
}

func TestBuild_SupervisorSeesOthersHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.RegisterActor(ctx, "alice", 0, 0, "N", []string{"SUPERVISOR"}, "", "", "secret")
	require.NoError(t, err)
	_, err = s.RegisterActor(ctx, "bob", 1, 1, "N", []string{"MOVE"}, "", "", "secret2")
	require.NoError(t, err)

	b := NewBuilder()
	snap, err := b.Build(ctx, s, "garden", "alice", ClampHistoryLength(0), ClampChatLength(0, 5))
	require.NoError(t, err)

	assert.Contains(t, snap.HUD, "Supervisor view")
	assert.Contains(t, snap.HUD, "[bob]")
}

func TestBuild_WallAtGridEdge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.RegisterActor(ctx, "alice", 0, 0, "N", nil, "", "", "secret")
	require.NoError(t, err)

	b := NewBuilder()
	snap, err := b.Build(ctx, s, "garden", "alice", ClampHistoryLength(0), ClampChatLength(0, 5))
	require.NoError(t, err)

	lines := strings.Split(snap.HUD, "\n")
	var north, west string
	for _, l := range lines {
		if strings.HasPrefix(l, "N:") {
			north = l
		}
		if strings.HasPrefix(l, "W:") {
			west = l
		}
	}
	assert.Contains(t, north, "(wall)")
	assert.Contains(t, west, "(wall)")
}
