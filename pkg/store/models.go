package store

import "time"

// Phase is the global lifecycle token of a namespace.
type Phase string

const (
	PhaseSetup   Phase = "SETUP"
	PhaseCollect Phase = "COLLECT"
	PhaseMerge   Phase = "MERGE"
	PhasePaused  Phase = "PAUSED"
)

// Meta mirrors the namespace's meta key/value table, typed for convenience.
type Meta struct {
	SuperTick     int64
	Phase         Phase
	Goal          string
	Width         int
	Height        int
	Epoch         int64
	SchemaVersion int
}

// Tile is the current color of one grid position.
type Tile struct {
	X     int
	Y     int
	Color string
}

// Actor is a registered agent.
type Actor struct {
	ID                 string
	Secret             string
	X                  int
	Y                  int
	Facing             string
	Scopes             []string
	CustomInstructions string
	LLMModel           string
	EliminatedAt       *time.Time
}

// Live reports whether the actor has not been eliminated.
func (a Actor) Live() bool { return a.EliminatedAt == nil }

// HasScope reports whether the actor's scope set grants intent.
func (a Actor) HasScope(intent string) bool {
	for _, s := range a.Scopes {
		if s == intent {
			return true
		}
	}
	return false
}

// JournalStatus is the lifecycle state of a journal entry.
type JournalStatus string

const (
	JournalPending   JournalStatus = "pending"
	JournalCommitted JournalStatus = "committed"
	JournalRejected  JournalStatus = "rejected"
)

// JournalEntry is a single pending or resolved submission.
type JournalEntry struct {
	SuperTick   int64
	ActorID     string
	Intent      string
	ParamsJSON  string
	Status      JournalStatus
	ResultJSON  string
	LLMInput    string
	LLMOutput   string
	SubmittedAt time.Time
}

// AuditEntry is an immutable post-merge copy of a resolved journal entry.
type AuditEntry struct {
	ID          int64
	SuperTick   int64
	ActorID     string
	Intent      string
	ParamsJSON  string
	Status      JournalStatus
	ResultJSON  string
	LLMInput    string
	LLMOutput   string
	SubmittedAt time.Time
}

// ChatMessage is one append-only chat row.
type ChatMessage struct {
	ID        int64
	SuperTick int64
	FromID    string
	Message   string
	CreatedAt time.Time
}

// TileHistoryEntry records one tile mutation at a given tick.
type TileHistoryEntry struct {
	SuperTick int64
	X, Y      int
	ActorID   string
	OldColor  string
	NewColor  string
}

// ActorHistoryEntry records one actor position/facing at a given tick.
type ActorHistoryEntry struct {
	SuperTick int64
	ActorID   string
	X, Y      int
	Facing    string
}
