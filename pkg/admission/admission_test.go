package admission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	monctx "github.com/usize/monument/pkg/context"
	"github.com/usize/monument/pkg/coordinator"
	"github.com/usize/monument/pkg/monumenterr"
	"github.com/usize/monument/pkg/store"
)

func newTestAdmitter(t *testing.T) (*Admitter, *store.Store, *store.Registry) {
	t.Helper()
	reg, err := store.NewRegistry(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	s, err := reg.Create(context.Background(), "arena", 5, 5, "paint the grid", 10)
	require.NoError(t, err)

	coord := coordinator.New(reg)
	return New(reg, coord), s, reg
}

func currentSubmission(t *testing.T, s *store.Store, actionStr string) Submission {
	t.Helper()
	meta, err := s.GetMeta(context.Background())
	require.NoError(t, err)
	hash := monctx.ComputeHash("arena", meta.SuperTick, meta.Phase, meta.Goal)
	return Submission{
		Namespace:   "arena",
		SuperTick:   meta.SuperTick,
		ContextHash: hash,
		Action:      actionStr,
	}
}

func TestSubmit_HappyPathInsertsJournal(t *testing.T) {
	admitter, s, _ := newTestAdmitter(t)
	ctx := context.Background()

	_, err := s.RegisterActor(ctx, "alice", 0, 0, "N", []string{"MOVE"}, "", "", "secret")
	require.NoError(t, err)

	sub := currentSubmission(t, s, "MOVE S")
	_, err = admitter.Submit(ctx, "arena", "alice", "secret", sub)
	require.NoError(t, err)

	j, err := s.GetJournal(ctx, 0, "alice")
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, "MOVE", j.Intent)
}

func TestSubmit_WrongSecretFails(t *testing.T) {
	admitter, s, _ := newTestAdmitter(t)
	ctx := context.Background()
	_, err := s.RegisterActor(ctx, "alice", 0, 0, "N", []string{"MOVE"}, "", "", "secret")
	require.NoError(t, err)

	sub := currentSubmission(t, s, "MOVE S")
	_, err = admitter.Submit(ctx, "arena", "alice", "wrong-secret", sub)
	assert.ErrorIs(t, err, monumenterr.ErrAuthFailed)
}

func TestSubmit_StaleSuperTickFails(t *testing.T) {
	admitter, s, _ := newTestAdmitter(t)
	ctx := context.Background()
	_, err := s.RegisterActor(ctx, "alice", 0, 0, "N", []string{"MOVE"}, "", "", "secret")
	require.NoError(t, err)

	sub := currentSubmission(t, s, "MOVE S")
	sub.SuperTick = 99

	_, err = admitter.Submit(ctx, "arena", "alice", "secret", sub)
	var snapErr *monumenterr.SnapshotError
	assert.ErrorAs(t, err, &snapErr)
	assert.Equal(t, "supertick", snapErr.Field)
}

func TestSubmit_StaleContextHashFails(t *testing.T) {
	admitter, s, _ := newTestAdmitter(t)
	ctx := context.Background()
	_, err := s.RegisterActor(ctx, "alice", 0, 0, "N", []string{"MOVE"}, "", "", "secret")
	require.NoError(t, err)

	sub := currentSubmission(t, s, "MOVE S")
	sub.ContextHash = "sha256:deadbeefdeadbeef"

	_, err = admitter.Submit(ctx, "arena", "alice", "secret", sub)
	var snapErr *monumenterr.SnapshotError
	assert.ErrorAs(t, err, &snapErr)
	assert.Equal(t, "context_hash", snapErr.Field)
}

func TestSubmit_ScopeDeniedFails(t *testing.T) {
	admitter, s, _ := newTestAdmitter(t)
	ctx := context.Background()
	_, err := s.RegisterActor(ctx, "alice", 0, 0, "N", []string{"SPEAK"}, "", "", "secret")
	require.NoError(t, err)

	sub := currentSubmission(t, s, "MOVE S")
	_, err = admitter.Submit(ctx, "arena", "alice", "secret", sub)
	assert.ErrorIs(t, err, monumenterr.ErrScopeDenied)
}

func TestSubmit_DuplicateSubmissionFails(t *testing.T) {
	admitter, s, _ := newTestAdmitter(t)
	ctx := context.Background()
	_, err := s.RegisterActor(ctx, "alice", 0, 0, "N", []string{"MOVE"}, "", "", "secret")
	require.NoError(t, err)
	_, err = s.RegisterActor(ctx, "bob", 1, 1, "N", []string{"MOVE"}, "", "", "secret2")
	require.NoError(t, err)

	sub := currentSubmission(t, s, "MOVE S")
	_, err = admitter.Submit(ctx, "arena", "alice", "secret", sub)
	require.NoError(t, err)

	sub2 := currentSubmission(t, s, "MOVE N")
	_, err = admitter.Submit(ctx, "arena", "alice", "secret", sub2)
	assert.ErrorIs(t, err, monumenterr.ErrAlreadySubmitted)
}

func TestSubmit_NamespaceMismatchFails(t *testing.T) {
	admitter, s, _ := newTestAdmitter(t)
	ctx := context.Background()
	_, err := s.RegisterActor(ctx, "alice", 0, 0, "N", []string{"MOVE"}, "", "", "secret")
	require.NoError(t, err)

	sub := currentSubmission(t, s, "MOVE S")
	sub.Namespace = "other"
	_, err = admitter.Submit(ctx, "arena", "alice", "secret", sub)
	assert.ErrorIs(t, err, monumenterr.ErrNamespaceMismatch)
}

func TestSubmit_TriggersMergeWhenLastActorSubmits(t *testing.T) {
	admitter, s, _ := newTestAdmitter(t)
	ctx := context.Background()
	_, err := s.RegisterActor(ctx, "alice", 0, 0, "N", []string{"MOVE"}, "", "", "secret")
	require.NoError(t, err)

	sub := currentSubmission(t, s, "MOVE S")
	result, err := admitter.Submit(ctx, "arena", "alice", "secret", sub)
	require.NoError(t, err)
	assert.True(t, result.Merged)
	assert.Equal(t, int64(0), result.OldTick)
	assert.Equal(t, int64(1), result.NewTick)
}
