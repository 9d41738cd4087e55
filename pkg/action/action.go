// Package action defines the tagged sum types for agent intents and merge
// results. The source system stored these as JSON blobs in a single
// params_json/result_json column; here they are typed, parsed once at
// admission, and serialized back to JSON only for persistence.
package action

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/usize/monument/pkg/monumenterr"
)

// Intent is one of the five action verbs an actor may submit.
type Intent string

const (
	IntentMove  Intent = "MOVE"
	IntentPaint Intent = "PAINT"
	IntentSpeak Intent = "SPEAK"
	IntentWait  Intent = "WAIT"
	IntentSkip  Intent = "SKIP"
)

// Direction is one of the four cardinal facings.
type Direction string

const (
	DirNorth Direction = "N"
	DirSouth Direction = "S"
	DirEast  Direction = "E"
	DirWest  Direction = "W"
)

// ValidDirection reports whether d is one of N/S/E/W.
func ValidDirection(d Direction) bool {
	switch d {
	case DirNorth, DirSouth, DirEast, DirWest:
		return true
	default:
		return false
	}
}

// Delta returns the (dx, dy) unit step for a direction. Screen/grid
// convention: N decreases y, S increases y, E increases x, W decreases x.
func (d Direction) Delta() (int, int) {
	switch d {
	case DirNorth:
		return 0, -1
	case DirSouth:
		return 0, 1
	case DirEast:
		return 1, 0
	case DirWest:
		return -1, 0
	default:
		return 0, 0
	}
}

// Action is the parsed, validated form of a raw action string.
type Action struct {
	Intent Intent
	Params string // direction for MOVE, color for PAINT, text for SPEAK; empty for WAIT/SKIP
}

// Parse parses a raw action string per the action grammar:
//
//	action := "MOVE " DIR | "PAINT " COLOR | "SPEAK " TEXT | "WAIT" | "SKIP"
//
// The first whitespace-separated token, uppercased, is the intent; the
// remainder is params.
func Parse(raw string) (Action, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Action{}, monumenterr.NewValidationError("action", "empty action")
	}

	intentTok, params := raw, ""
	if i := strings.IndexFunc(raw, unicode.IsSpace); i >= 0 {
		intentTok, params = raw[:i], strings.TrimSpace(raw[i:])
	}
	intent := Intent(strings.ToUpper(intentTok))

	switch intent {
	case IntentMove:
		dir := Direction(strings.ToUpper(params))
		if !ValidDirection(dir) {
			return Action{}, monumenterr.NewValidationError("params", fmt.Sprintf("MOVE requires params in {N,S,E,W}, got %q", params))
		}
		return Action{Intent: IntentMove, Params: string(dir)}, nil
	case IntentPaint:
		color, err := NormalizeColor(params)
		if err != nil {
			return Action{}, monumenterr.NewValidationError("params", err.Error())
		}
		return Action{Intent: IntentPaint, Params: color}, nil
	case IntentSpeak:
		if params == "" {
			return Action{}, monumenterr.NewValidationError("params", "SPEAK requires non-empty text")
		}
		return Action{Intent: IntentSpeak, Params: params}, nil
	case IntentWait:
		return Action{Intent: IntentWait}, nil
	case IntentSkip:
		return Action{Intent: IntentSkip}, nil
	default:
		return Action{}, monumenterr.NewValidationError("intent", fmt.Sprintf("unknown intent %q", intentTok))
	}
}

// NormalizeColor accepts a non-empty color token and canonicalizes
// recognizable hex forms to uppercase "#RRGGBB", expanding the 3-hex-digit
// short form first. Any other non-empty token is accepted verbatim, matching
// the grammar's "non-empty token" requirement — canonical expansion only
// applies to recognizable hex forms. Canonicalizing case matters: PAINT
// NO_OP and conflict comparisons are exact string equality against stored
// tile colors.
func NormalizeColor(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("PAINT requires a non-empty color")
	}
	if len(raw) == 4 && raw[0] == '#' && isHex(raw[1:]) {
		var b strings.Builder
		for _, c := range raw[1:] {
			b.WriteRune(c)
			b.WriteRune(c)
		}
		return "#" + strings.ToUpper(b.String()), nil
	}
	if len(raw) == 7 && raw[0] == '#' && isHex(raw[1:]) {
		return "#" + strings.ToUpper(raw[1:]), nil
	}
	return raw, nil
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// paramsJSON is the on-disk shape of journal.params_json: {"params": "..."}.
type paramsJSON struct {
	Params string `json:"params"`
}

// MarshalParams renders an Action's params as the journal's params_json blob.
func MarshalParams(a Action) (string, error) {
	b, err := json.Marshal(paramsJSON{Params: a.Params})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalParams parses a params_json blob back into the raw params string.
func UnmarshalParams(raw string) (string, error) {
	var p paramsJSON
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return "", err
	}
	return p.Params, nil
}

// Outcome is the tag of a merge Result.
type Outcome string

const (
	OutcomeSuccess      Outcome = "SUCCESS"
	OutcomeConflictLost Outcome = "CONFLICT_LOST"
	OutcomeNoOp         Outcome = "NO_OP"
	OutcomeInvalid      Outcome = "INVALID"
)

// Result is the tagged outcome of a resolved journal entry, persisted as
// journal.result_json and copied verbatim into audit.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Winner  string  `json:"winner,omitempty"`
}

// MarshalResult renders a Result as its result_json form.
func MarshalResult(r Result) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalResult parses a result_json blob back into a Result.
func UnmarshalResult(raw string) (Result, error) {
	var r Result
	if raw == "" {
		return r, nil
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Result{}, err
	}
	return r, nil
}
