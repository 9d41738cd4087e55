// Package admission implements submission admission: the nine-step
// fail-fast sequence that authenticates an agent, validates its snapshot
// and scope, and appends its action to the journal.
package admission

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/usize/monument/pkg/action"
	monctx "github.com/usize/monument/pkg/context"
	"github.com/usize/monument/pkg/coordinator"
	"github.com/usize/monument/pkg/monumenterr"
	"github.com/usize/monument/pkg/store"
)

// Submission is the parsed request body of POST .../action.
type Submission struct {
	Namespace   string
	SuperTick   int64
	ContextHash string
	Action      string
	LLMInput    string
	LLMOutput   string
}

// Result reports what admission did, including whether it triggered a merge.
type Result struct {
	Merged  bool
	OldTick int64
	NewTick int64
}

// Admitter runs the admission sequence against a registry and hands
// completed ticks to a Coordinator.
type Admitter struct {
	registry    *store.Registry
	coordinator *coordinator.Coordinator
}

// New returns an Admitter wired to registry and coordinator.
func New(registry *store.Registry, coord *coordinator.Coordinator) *Admitter {
	return &Admitter{registry: registry, coordinator: coord}
}

// Submit runs the nine-step admission sequence (spec §4.3) for one actor's
// submission, then asks the coordinator to merge if the tick is now
// complete.
func (a *Admitter) Submit(ctx context.Context, urlNamespace, actorID, providedSecret string, sub Submission) (Result, error) {
	// Step 1: namespace syntax + URL/body agreement.
	if err := store.ValidateNamespace(urlNamespace); err != nil {
		return Result{}, err
	}
	if sub.Namespace != "" && sub.Namespace != urlNamespace {
		return Result{}, monumenterr.ErrNamespaceMismatch
	}

	var result Result
	err := a.registry.WithWriteLock(ctx, urlNamespace, func(s *store.Store) error {
		// Step 2: actor exists, not eliminated, secret matches in constant time.
		actor, err := s.GetActor(ctx, actorID)
		if err != nil {
			if errors.Is(err, monumenterr.ErrNotFound) {
				return monumenterr.ErrAuthFailed
			}
			return err
		}
		if !actor.Live() {
			return monumenterr.ErrAuthFailed
		}
		if subtle.ConstantTimeCompare([]byte(actor.Secret), []byte(providedSecret)) != 1 {
			return monumenterr.ErrAuthFailed
		}

		meta, err := s.GetMeta(ctx)
		if err != nil {
			return err
		}

		// Step 3: supertick must match exactly.
		if sub.SuperTick != meta.SuperTick {
			return &monumenterr.SnapshotError{
				Field:    "supertick",
				Expected: fmt.Sprintf("%d", meta.SuperTick),
				Got:      fmt.Sprintf("%d", sub.SuperTick),
			}
		}

		// Step 4: context_hash must match.
		expectedHash := monctx.ComputeHash(urlNamespace, meta.SuperTick, meta.Phase, meta.Goal)
		if sub.ContextHash != expectedHash {
			return &monumenterr.SnapshotError{
				Field:    "context_hash",
				Expected: expectedHash,
				Got:      sub.ContextHash,
			}
		}

		// Step 5: phase must be open for submissions. Both SETUP and COLLECT
		// are accepted (spec §9 open question #3, resolved permissively —
		// see SPEC_FULL.md §5.3).
		if meta.Phase != store.PhaseSetup && meta.Phase != store.PhaseCollect {
			return monumenterr.ErrPhaseClosed
		}

		// Step 6: no existing journal row for this actor at this tick.
		existing, err := s.GetJournal(ctx, meta.SuperTick, actorID)
		if err != nil {
			return err
		}
		if existing != nil {
			return monumenterr.ErrAlreadySubmitted
		}

		// Step 7: parse the action grammar.
		parsed, err := action.Parse(sub.Action)
		if err != nil {
			return err
		}

		// Step 8: scope check.
		if !actor.HasScope(string(parsed.Intent)) {
			return monumenterr.ErrScopeDenied
		}

		// Step 9: insert pending journal row.
		paramsJSON, err := action.MarshalParams(parsed)
		if err != nil {
			return err
		}
		entry := store.JournalEntry{
			SuperTick:   meta.SuperTick,
			ActorID:     actorID,
			Intent:      string(parsed.Intent),
			ParamsJSON:  paramsJSON,
			Status:      store.JournalPending,
			LLMInput:    sub.LLMInput,
			LLMOutput:   sub.LLMOutput,
			SubmittedAt: time.Now().UTC(),
		}
		if err := s.InsertJournal(ctx, entry); err != nil {
			return fmt.Errorf("insert journal: %w", err)
		}

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	merge, err := a.coordinator.CheckAndMerge(ctx, urlNamespace)
	if err != nil {
		return Result{}, fmt.Errorf("post-submission merge check: %w", err)
	}
	result.Merged = merge.Merged
	result.OldTick = merge.OldTick
	result.NewTick = merge.NewTick
	return result, nil
}
