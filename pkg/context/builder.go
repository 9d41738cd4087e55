package context

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/usize/monument/pkg/action"
	"github.com/usize/monument/pkg/store"
)

// DefaultHistoryLength is used when the caller omits history_length; an
// omitted chat_length defaults to the history length. The Min/Max constants
// bound the [1,20]/[1,50] ranges from spec §4.2.
const (
	DefaultHistoryLength = 5
	MinHistoryLength     = 1
	MaxHistoryLength     = 20

	MinChatLength = 1
	MaxChatLength = 50
)

// ClampHistoryLength clamps h into [MinHistoryLength, MaxHistoryLength],
// defaulting to DefaultHistoryLength when h <= 0.
func ClampHistoryLength(h int) int {
	if h <= 0 {
		h = DefaultHistoryLength
	}
	if h < MinHistoryLength {
		h = MinHistoryLength
	}
	if h > MaxHistoryLength {
		h = MaxHistoryLength
	}
	return h
}

// ClampChatLength clamps c into [MinChatLength, MaxChatLength], defaulting to
// historyLength when c <= 0 (spec §4.2: "defaults to history_length").
func ClampChatLength(c, historyLength int) int {
	if c <= 0 {
		c = historyLength
	}
	if c < MinChatLength {
		c = MinChatLength
	}
	if c > MaxChatLength {
		c = MaxChatLength
	}
	return c
}

// Snapshot is the response to a context fetch.
type Snapshot struct {
	Namespace   string
	SuperTick   int64
	ContextHash string
	Phase       store.Phase
	HUD         string
}

// Builder assembles deterministic context snapshots.
type Builder struct{}

// NewBuilder returns a Builder. It is stateless; kept as a type for
// consistency with the rest of the package layout and to leave room for
// future configuration (e.g. a HUD template override) without changing call
// sites.
func NewBuilder() *Builder { return &Builder{} }

// Build produces the context snapshot for actorID in namespace s at its
// current tick. historyLength and chatLength must already be clamped by the
// caller (pkg/api) via ClampHistoryLength/ClampChatLength.
func (b *Builder) Build(ctx context.Context, s *store.Store, namespace, actorID string, historyLength, chatLength int) (Snapshot, error) {
	meta, err := s.GetMeta(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read meta: %w", err)
	}

	actor, err := s.GetActor(ctx, actorID)
	if err != nil {
		return Snapshot{}, err
	}

	hud, err := buildHUD(ctx, s, meta, *actor, historyLength, chatLength)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build hud: %w", err)
	}

	return Snapshot{
		Namespace:   namespace,
		SuperTick:   meta.SuperTick,
		ContextHash: ComputeHash(namespace, meta.SuperTick, meta.Phase, meta.Goal),
		Phase:       meta.Phase,
		HUD:         hud,
	}, nil
}

func buildHUD(ctx context.Context, s *store.Store, meta store.Meta, actor store.Actor, historyLength, chatLength int) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Monument — namespace status ===\n")
	fmt.Fprintf(&b, "Supertick: %d   Phase: %s   Goal: %s\n", meta.SuperTick, meta.Phase, meta.Goal)
	fmt.Fprintf(&b, "Grid: %dx%d\n\n", meta.Width, meta.Height)

	fmt.Fprintf(&b, "-- You (%s) --\n", actor.ID)
	fmt.Fprintf(&b, "Position: (%d,%d)   Facing: %s\n", actor.X, actor.Y, actor.Facing)
	if actor.CustomInstructions != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", actor.CustomInstructions)
	}
	b.WriteString("\n")

	tiles, err := s.ListTiles(ctx)
	if err != nil {
		return "", err
	}
	tileByPos := make(map[[2]int]string, len(tiles))
	for _, t := range tiles {
		tileByPos[[2]int{t.X, t.Y}] = t.Color
	}

	b.WriteString("-- Compass --\n")
	for _, dir := range []action.Direction{action.DirNorth, action.DirSouth, action.DirEast, action.DirWest} {
		dx, dy := dir.Delta()
		nx, ny := actor.X+dx, actor.Y+dy
		if nx < 0 || nx >= meta.Width || ny < 0 || ny >= meta.Height {
			fmt.Fprintf(&b, "%s: (wall)\n", dir)
			continue
		}
		color := tileByPos[[2]int{nx, ny}]
		fmt.Fprintf(&b, "%s: (%d,%d) %s\n", dir, nx, ny, color)
	}
	b.WriteString("\n")

	b.WriteString("-- Tile colors --\n")
	writeTileHistogram(&b, tiles)
	b.WriteString("\n")

	allActors, err := s.ListAllActors(ctx)
	if err != nil {
		return "", err
	}
	b.WriteString("-- Roster (live) --\n")
	for _, other := range allActors {
		if !other.Live() {
			continue
		}
		dist := manhattan(actor.X, actor.Y, other.X, other.Y)
		marker := ""
		if other.ID == actor.ID {
			marker = " (you)"
		}
		fmt.Fprintf(&b, "%s%s @ (%d,%d) facing %s — distance %d\n", other.ID, marker, other.X, other.Y, other.Facing, dist)
	}
	b.WriteString("\n")

	prevTick := meta.SuperTick - 1
	if prevTick >= 0 {
		prevAudit, err := s.ListAuditForTick(ctx, prevTick)
		if err != nil {
			return "", err
		}
		b.WriteString("-- Previous tick results --\n")
		if len(prevAudit) == 0 {
			b.WriteString("(none)\n")
		}
		for _, a := range prevAudit {
			writeAuditLine(&b, a)
		}
		b.WriteString("\n")
	}

	b.WriteString("-- Your recent history --\n")
	mine, err := s.ListAuditForActor(ctx, actor.ID, historyLength)
	if err != nil {
		return "", err
	}
	if len(mine) == 0 {
		b.WriteString("(none)\n")
	}
	for _, a := range mine {
		writeAuditLineWithOutput(&b, a)
	}
	b.WriteString("\n")

	if actor.HasScope("SUPERVISOR") {
		b.WriteString("-- Supervisor view: other agents' recent history --\n")
		names := make([]string, 0, len(allActors))
		for _, other := range allActors {
			if other.ID == actor.ID {
				continue
			}
			names = append(names, other.ID)
		}
		sort.Strings(names)
		for _, name := range names {
			theirs, err := s.ListAuditForActor(ctx, name, historyLength)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "[%s]\n", name)
			if len(theirs) == 0 {
				b.WriteString("(none)\n")
			}
			for _, a := range theirs {
				writeAuditLineWithOutput(&b, a)
			}
		}
		b.WriteString("\n")
	}

	chat, err := s.ListRecentChat(ctx, chatLength)
	if err != nil {
		return "", err
	}
	b.WriteString("-- Chat --\n")
	if len(chat) == 0 {
		b.WriteString("(none)\n")
	}
	for _, m := range chat {
		fmt.Fprintf(&b, "[T%d] %s: %s\n", m.SuperTick, m.FromID, m.Message)
	}
	b.WriteString("\n")

	b.WriteString("-- Available actions --\n")
	for _, line := range availableActions(actor) {
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String(), nil
}

func writeTileHistogram(b *strings.Builder, tiles []store.Tile) {
	counts := make(map[string]int)
	positions := make(map[string][][2]int)
	for _, t := range tiles {
		counts[t.Color]++
		positions[t.Color] = append(positions[t.Color], [2]int{t.X, t.Y})
	}

	colors := make([]string, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Strings(colors)

	for _, c := range colors {
		n := counts[c]
		if n <= 3 {
			pts := positions[c]
			sort.Slice(pts, func(i, j int) bool {
				if pts[i][0] != pts[j][0] {
					return pts[i][0] < pts[j][0]
				}
				return pts[i][1] < pts[j][1]
			})
			coords := make([]string, 0, len(pts))
			for _, p := range pts {
				coords = append(coords, fmt.Sprintf("(%d,%d)", p[0], p[1]))
			}
			fmt.Fprintf(b, "%s: %s\n", c, strings.Join(coords, ", "))
		} else {
			fmt.Fprintf(b, "%s: %d tiles\n", c, n)
		}
	}
}

func writeAuditLine(b *strings.Builder, a store.AuditEntry) {
	result, _ := action.UnmarshalResult(a.ResultJSON)
	fmt.Fprintf(b, "%s %s: %s", a.ActorID, a.Intent, result.Outcome)
	if result.Reason != "" {
		fmt.Fprintf(b, " (%s)", result.Reason)
	}
	b.WriteString("\n")
}

func writeAuditLineWithOutput(b *strings.Builder, a store.AuditEntry) {
	writeAuditLine(b, a)
	if a.LLMOutput != "" {
		fmt.Fprintf(b, "  > %s\n", a.LLMOutput)
	}
}

func availableActions(actor store.Actor) []string {
	var lines []string
	if actor.HasScope(string(action.IntentMove)) {
		lines = append(lines, "MOVE <N|S|E|W>")
	}
	if actor.HasScope(string(action.IntentPaint)) {
		lines = append(lines, "PAINT <#RRGGBB>")
	}
	if actor.HasScope(string(action.IntentSpeak)) {
		lines = append(lines, "SPEAK <text>")
	}
	if actor.HasScope(string(action.IntentWait)) {
		lines = append(lines, "WAIT")
	}
	if actor.HasScope(string(action.IntentSkip)) {
		lines = append(lines, "SKIP")
	}
	return lines
}

func manhattan(x1, y1, x2, y2 int) int {
	d := x1 - x2
	if d < 0 {
		d = -d
	}
	e := y1 - y2
	if e < 0 {
		e = -e
	}
	return d + e
}
