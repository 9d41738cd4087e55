package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usize/monument/pkg/action"
	"github.com/usize/monument/pkg/store"
)

func newTestRegistry(t *testing.T) *store.Registry {
	t.Helper()
	reg, err := store.NewRegistry(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func submit(t *testing.T, s *store.Store, tick int64, actorID string, a action.Action) {
	t.Helper()
	params, err := action.MarshalParams(a)
	require.NoError(t, err)
	require.NoError(t, s.InsertJournal(context.Background(), store.JournalEntry{
		SuperTick: tick, ActorID: actorID, Intent: string(a.Intent), ParamsJSON: params,
		Status: store.JournalPending, SubmittedAt: time.Now(),
	}))
}

func TestCheckAndMerge_NotCompleteUntilAllLiveActorsSubmit(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Create(ctx, "arena", 5, 5, "goal", 1)
	require.NoError(t, err)
	_, err = s.RegisterActor(ctx, "alice", 0, 0, "N", []string{"MOVE"}, "", "", "s1")
	require.NoError(t, err)
	_, err = s.RegisterActor(ctx, "bob", 1, 1, "N", []string{"MOVE"}, "", "", "s2")
	require.NoError(t, err)

	c := New(reg)

	submit(t, s, 0, "alice", action.Action{Intent: action.IntentMove, Params: "N"})

	res, err := c.CheckAndMerge(ctx, "arena")
	require.NoError(t, err)
	assert.False(t, res.Merged)

	submit(t, s, 0, "bob", action.Action{Intent: action.IntentMove, Params: "S"})

	res, err = c.CheckAndMerge(ctx, "arena")
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.Equal(t, int64(0), res.OldTick)
	assert.Equal(t, int64(1), res.NewTick)

	meta, err := s.GetMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.PhasePaused, meta.Phase) // epoch 1 reached after tick 0->1
}

func TestMerge_MoveConflictResolvedByActorIDAscending(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Create(ctx, "clash", 5, 5, "goal", 5)
	require.NoError(t, err)
	_, err = s.RegisterActor(ctx, "alice", 1, 0, "S", []string{"MOVE"}, "", "", "s1")
	require.NoError(t, err)
	_, err = s.RegisterActor(ctx, "zane", 1, 2, "N", []string{"MOVE"}, "", "", "s2")
	require.NoError(t, err)

	c := New(reg)
	submit(t, s, 0, "alice", action.Action{Intent: action.IntentMove, Params: "S"}) // alice -> (1,1)
	submit(t, s, 0, "zane", action.Action{Intent: action.IntentMove, Params: "N"})  // zane -> (1,1)

	res, err := c.CheckAndMerge(ctx, "clash")
	require.NoError(t, err)
	require.True(t, res.Merged)

	alice, err := s.GetActor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.X)
	assert.Equal(t, 1, alice.Y) // winner: lower actor id

	zane, err := s.GetActor(ctx, "zane")
	require.NoError(t, err)
	assert.Equal(t, 1, zane.X)
	assert.Equal(t, 2, zane.Y) // loser: stays put

	journal, err := s.GetJournal(ctx, 0, "zane")
	require.NoError(t, err)
	require.NotNil(t, journal)
	result, err := action.UnmarshalResult(journal.ResultJSON)
	require.NoError(t, err)
	assert.Equal(t, action.OutcomeConflictLost, result.Outcome)
	assert.Equal(t, "alice", result.Winner)
}

func TestMerge_PaintTargetsActorsOwnTileAndRecordsHistory(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Create(ctx, "canvas", 5, 5, "goal", 5)
	require.NoError(t, err)
	_, err = s.RegisterActor(ctx, "alice", 0, 0, "S", []string{"MOVE", "PAINT"}, "", "", "s1")
	require.NoError(t, err)
	_, err = s.RegisterActor(ctx, "bob", 2, 2, "N", []string{"MOVE", "PAINT"}, "", "", "s2")
	require.NoError(t, err)

	c := New(reg)
	submit(t, s, 0, "alice", action.Action{Intent: action.IntentMove, Params: "S"})
	submit(t, s, 0, "bob", action.Action{Intent: action.IntentPaint, Params: "#00FF00"})

	res, err := c.CheckAndMerge(ctx, "canvas")
	require.NoError(t, err)
	require.True(t, res.Merged)

	// bob's paint lands on bob's own pre-move tile, unaffected by alice's move.
	tile, err := s.GetTile(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, "#00FF00", tile.Color)

	unrelated, err := s.GetTile(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "#FFFFFF", unrelated.Color)

	alice, err := s.GetActor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, alice.X)
	assert.Equal(t, 1, alice.Y)
}

func TestMerge_SpeakAlwaysSucceedsInInsertOrder(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Create(ctx, "chatty", 5, 5, "goal", 5)
	require.NoError(t, err)
	_, err = s.RegisterActor(ctx, "zane", 0, 0, "N", []string{"SPEAK"}, "", "", "s1")
	require.NoError(t, err)
	_, err = s.RegisterActor(ctx, "alice", 0, 1, "N", []string{"SPEAK"}, "", "", "s2")
	require.NoError(t, err)

	c := New(reg)
	submit(t, s, 0, "zane", action.Action{Intent: action.IntentSpeak, Params: "hello first"})
	submit(t, s, 0, "alice", action.Action{Intent: action.IntentSpeak, Params: "hello second"})

	res, err := c.CheckAndMerge(ctx, "chatty")
	require.NoError(t, err)
	require.True(t, res.Merged)

	msgs, err := s.ListRecentChat(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "zane", msgs[0].FromID)
	assert.Equal(t, "alice", msgs[1].FromID)
}
