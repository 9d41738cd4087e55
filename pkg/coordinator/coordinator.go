// Package coordinator implements the tick completion predicate and the
// MERGE algorithm: the single transaction that turns a batch of per-agent
// intents into the namespace's next world state and advances its supertick.
package coordinator

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/usize/monument/pkg/action"
	"github.com/usize/monument/pkg/store"
)

// Coordinator drives completion checks and MERGE for namespaces held by a
// store.Registry.
type Coordinator struct {
	registry *store.Registry
}

// New returns a Coordinator bound to registry.
func New(registry *store.Registry) *Coordinator {
	return &Coordinator{registry: registry}
}

// MergeResult describes what CheckAndMerge did.
type MergeResult struct {
	Merged  bool
	OldTick int64
	NewTick int64
}

// CheckAndMerge checks whether namespace's current tick is complete and, if
// so, runs MERGE. It is safe to call repeatedly and concurrently — all work
// happens under the namespace's single writer lock (spec §5).
func (c *Coordinator) CheckAndMerge(ctx context.Context, namespace string) (MergeResult, error) {
	var result MergeResult
	err := c.registry.WithWriteLock(ctx, namespace, func(s *store.Store) error {
		meta, err := s.GetMeta(ctx)
		if err != nil {
			return fmt.Errorf("read meta: %w", err)
		}

		complete, err := c.isComplete(ctx, s, meta)
		if err != nil {
			return err
		}
		if !complete {
			return nil
		}

		newTick, err := merge(ctx, s, meta)
		if err != nil {
			return fmt.Errorf("merge tick %d: %w", meta.SuperTick, err)
		}

		result = MergeResult{Merged: true, OldTick: meta.SuperTick, NewTick: newTick}
		slog.Info("tick merged", "namespace", namespace, "old_tick", meta.SuperTick, "new_tick", newTick)
		return nil
	})
	return result, err
}

// isComplete implements the completion predicate of spec §4.4: phase must be
// SETUP or COLLECT, the tick must be below epoch, and every live actor must
// have a pending journal row — except SETUP with zero live actors, which is
// never complete.
func (c *Coordinator) isComplete(ctx context.Context, s *store.Store, meta store.Meta) (bool, error) {
	if meta.Phase != store.PhaseSetup && meta.Phase != store.PhaseCollect {
		return false, nil
	}
	if meta.SuperTick >= meta.Epoch {
		return false, nil
	}

	live, err := s.ListLiveActors(ctx)
	if err != nil {
		return false, err
	}
	if meta.Phase == store.PhaseSetup && len(live) == 0 {
		return false, nil
	}

	pending, err := s.CountPendingForTick(ctx, meta.SuperTick)
	if err != nil {
		return false, err
	}
	return pending == len(live), nil
}

// merge runs the all-or-nothing MERGE transaction for meta.SuperTick and
// returns the new supertick value.
func merge(ctx context.Context, s *store.Store, meta store.Meta) (int64, error) {
	tick := meta.SuperTick

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	pending, err := s.ListPendingForTick(ctx, tx, tick)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	byIntent := make(map[action.Intent][]store.JournalEntry)
	for _, j := range pending {
		byIntent[action.Intent(j.Intent)] = append(byIntent[action.Intent(j.Intent)], j)
	}

	// Snapshot every actor's position before any write this tick. PAINT
	// always targets the pre-move tile, and MOVE destinations are computed
	// from these same pre-move positions (spec §9 open question #2).
	preMove := make(map[string]store.Actor)
	for _, j := range pending {
		if _, ok := preMove[j.ActorID]; ok {
			continue
		}
		a, err := s.GetActorTx(ctx, tx, j.ActorID)
		if err != nil {
			return 0, fmt.Errorf("snapshot actor %s: %w", j.ActorID, err)
		}
		preMove[j.ActorID] = *a
	}

	if err := resolveMoves(ctx, tx, s, tick, meta, byIntent[action.IntentMove], preMove); err != nil {
		return 0, fmt.Errorf("resolve moves: %w", err)
	}
	if err := resolvePaints(ctx, tx, s, tick, byIntent[action.IntentPaint], preMove); err != nil {
		return 0, fmt.Errorf("resolve paints: %w", err)
	}
	if err := resolveSpeaks(ctx, tx, s, tick); err != nil {
		return 0, fmt.Errorf("resolve speaks: %w", err)
	}
	if err := resolveWaitsAndSkips(ctx, tx, s, byIntent[action.IntentWait], "Waited"); err != nil {
		return 0, err
	}
	if err := resolveWaitsAndSkips(ctx, tx, s, byIntent[action.IntentSkip], "Waited"); err != nil {
		return 0, err
	}

	if err := s.CopyResolvedToAuditTx(ctx, tx, tick); err != nil {
		return 0, fmt.Errorf("copy to audit: %w", err)
	}

	newTick := tick + 1
	newPhase := store.PhaseCollect
	if newTick >= meta.Epoch {
		newPhase = store.PhasePaused
	}
	if err := s.AdvanceTickTx(ctx, tx, newTick, newPhase); err != nil {
		return 0, fmt.Errorf("advance tick: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit merge: %w", err)
	}
	return newTick, nil
}

func resolveResult(ctx context.Context, tx *sql.Tx, s *store.Store, tick int64, actorID string, status store.JournalStatus, result action.Result) error {
	resultJSON, err := action.MarshalResult(result)
	if err != nil {
		return err
	}
	return s.ResolveJournalTx(ctx, tx, tick, actorID, status, resultJSON)
}

// resolveMoves implements spec §4.4 step 2. Facing is updated to the
// requested direction for every mover, winner and losers alike (spec §9
// open question #1).
func resolveMoves(ctx context.Context, tx *sql.Tx, s *store.Store, tick int64, meta store.Meta, moves []store.JournalEntry, preMove map[string]store.Actor) error {
	type mover struct {
		actorID      string
		destX, destY int
		facing       string
	}

	destGroups := make(map[[2]int][]mover)

	for _, j := range moves {
		raw, err := action.UnmarshalParams(j.ParamsJSON)
		if err != nil {
			return err
		}
		dir := action.Direction(raw)
		if !action.ValidDirection(dir) {
			// Defense-in-depth: Admission already rejects this at submission
			// time (spec §4.4 step 6).
			if err := resolveResult(ctx, tx, s, tick, j.ActorID, store.JournalRejected, action.Result{Outcome: action.OutcomeInvalid, Reason: "invalid direction"}); err != nil {
				return err
			}
			continue
		}

		actor := preMove[j.ActorID]
		dx, dy := dir.Delta()
		destX, destY := clamp(actor.X+dx, meta.Width), clamp(actor.Y+dy, meta.Height)
		key := [2]int{destX, destY}
		destGroups[key] = append(destGroups[key], mover{actorID: j.ActorID, destX: destX, destY: destY, facing: string(dir)})
	}

	// Destinations are walked in a fixed order so actor_history rows are
	// written in the same order on every run; only the per-destination
	// winner ordering affects outcomes.
	dests := make([][2]int, 0, len(destGroups))
	for k := range destGroups {
		dests = append(dests, k)
	}
	sort.Slice(dests, func(i, j int) bool {
		if dests[i][0] != dests[j][0] {
			return dests[i][0] < dests[j][0]
		}
		return dests[i][1] < dests[j][1]
	})

	for _, dest := range dests {
		movers := destGroups[dest]
		sort.Slice(movers, func(i, j int) bool { return movers[i].actorID < movers[j].actorID })

		if len(movers) == 1 {
			m := movers[0]
			if err := s.UpdateActorPositionTx(ctx, tx, tick, m.actorID, m.destX, m.destY, m.facing); err != nil {
				return err
			}
			reason := fmt.Sprintf("Moved to (%d,%d)", m.destX, m.destY)
			if err := resolveResult(ctx, tx, s, tick, m.actorID, store.JournalCommitted, action.Result{Outcome: action.OutcomeSuccess, Reason: reason}); err != nil {
				return err
			}
			continue
		}

		winner := movers[0]
		if err := s.UpdateActorPositionTx(ctx, tx, tick, winner.actorID, winner.destX, winner.destY, winner.facing); err != nil {
			return err
		}
		reason := fmt.Sprintf("Moved to (%d,%d)", winner.destX, winner.destY)
		if err := resolveResult(ctx, tx, s, tick, winner.actorID, store.JournalCommitted, action.Result{Outcome: action.OutcomeSuccess, Reason: reason}); err != nil {
			return err
		}

		for _, loser := range movers[1:] {
			stay := preMove[loser.actorID]
			// Loser stays at its pre-move position but facing still updates
			// (spec §9 open question #1).
			if err := s.UpdateActorPositionTx(ctx, tx, tick, loser.actorID, stay.X, stay.Y, loser.facing); err != nil {
				return err
			}
			reason := fmt.Sprintf("Lost move conflict to %s", winner.actorID)
			if err := resolveResult(ctx, tx, s, tick, loser.actorID, store.JournalRejected, action.Result{Outcome: action.OutcomeConflictLost, Reason: reason, Winner: winner.actorID}); err != nil {
				return err
			}
		}
	}

	return nil
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v >= limit {
		return limit - 1
	}
	return v
}

// resolvePaints implements spec §4.4 step 3. Every PAINT targets the actor's
// pre-move tile, from the same snapshot resolveMoves reads, so a MOVE and a
// PAINT submitted by different actors in the same tick never interact with
// each other's destination.
func resolvePaints(ctx context.Context, tx *sql.Tx, s *store.Store, tick int64, paints []store.JournalEntry, preMove map[string]store.Actor) error {
	type painter struct {
		actorID string
		color   string
	}

	tileGroups := make(map[[2]int][]painter)

	for _, j := range paints {
		color, err := action.UnmarshalParams(j.ParamsJSON)
		if err != nil {
			return err
		}
		pos := preMove[j.ActorID]
		key := [2]int{pos.X, pos.Y}
		tileGroups[key] = append(tileGroups[key], painter{actorID: j.ActorID, color: color})
	}

	tiles := make([][2]int, 0, len(tileGroups))
	for k := range tileGroups {
		tiles = append(tiles, k)
	}
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i][0] != tiles[j][0] {
			return tiles[i][0] < tiles[j][0]
		}
		return tiles[i][1] < tiles[j][1]
	})

	for _, pos := range tiles {
		painters := tileGroups[pos]
		sort.Slice(painters, func(i, j int) bool { return painters[i].actorID < painters[j].actorID })

		tile, err := currentTileColorTx(ctx, tx, pos[0], pos[1])
		if err != nil {
			return err
		}

		if len(painters) == 1 {
			p := painters[0]
			if p.color == tile {
				if err := resolveResult(ctx, tx, s, tick, p.actorID, store.JournalCommitted, action.Result{Outcome: action.OutcomeNoOp}); err != nil {
					return err
				}
				continue
			}
			if err := s.UpdateTileTx(ctx, tx, tick, pos[0], pos[1], p.actorID, tile, p.color); err != nil {
				return err
			}
			if err := resolveResult(ctx, tx, s, tick, p.actorID, store.JournalCommitted, action.Result{Outcome: action.OutcomeSuccess}); err != nil {
				return err
			}
			continue
		}

		winner := painters[0]
		if err := s.UpdateTileTx(ctx, tx, tick, pos[0], pos[1], winner.actorID, tile, winner.color); err != nil {
			return err
		}
		if err := resolveResult(ctx, tx, s, tick, winner.actorID, store.JournalCommitted, action.Result{Outcome: action.OutcomeSuccess}); err != nil {
			return err
		}
		for _, loser := range painters[1:] {
			reason := fmt.Sprintf("Lost paint conflict to %s", winner.actorID)
			if err := resolveResult(ctx, tx, s, tick, loser.actorID, store.JournalRejected, action.Result{Outcome: action.OutcomeConflictLost, Reason: reason, Winner: winner.actorID}); err != nil {
				return err
			}
		}
	}

	return nil
}

func currentTileColorTx(ctx context.Context, tx *sql.Tx, x, y int) (string, error) {
	var color string
	err := tx.QueryRowContext(ctx, `SELECT color FROM tiles WHERE x = ? AND y = ?`, x, y).Scan(&color)
	return color, err
}

// resolveSpeaks implements spec §4.4 step 4: every pending SPEAK, in
// journal-insertion order, appends a chat row and commits with no conflict
// resolution.
func resolveSpeaks(ctx context.Context, tx *sql.Tx, s *store.Store, tick int64) error {
	all, err := s.ListPendingForTickInsertOrder(ctx, tx, tick)
	if err != nil {
		return err
	}
	for _, j := range all {
		if action.Intent(j.Intent) != action.IntentSpeak {
			continue
		}
		message, err := action.UnmarshalParams(j.ParamsJSON)
		if err != nil {
			return err
		}
		if err := s.InsertChatTx(ctx, tx, tick, j.ActorID, message); err != nil {
			return err
		}
		if err := resolveResult(ctx, tx, s, tick, j.ActorID, store.JournalCommitted, action.Result{Outcome: action.OutcomeSuccess, Reason: "Message sent"}); err != nil {
			return err
		}
	}
	return nil
}

// resolveWaitsAndSkips implements spec §4.4 step 5.
func resolveWaitsAndSkips(ctx context.Context, tx *sql.Tx, s *store.Store, entries []store.JournalEntry, reason string) error {
	for _, j := range entries {
		if err := resolveResult(ctx, tx, s, j.SuperTick, j.ActorID, store.JournalCommitted, action.Result{Outcome: action.OutcomeSuccess, Reason: reason}); err != nil {
			return err
		}
	}
	return nil
}
