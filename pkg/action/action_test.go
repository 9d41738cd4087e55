package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_Move(t *testing.T) {
	a, err := Parse("move n")
	assert.NoError(t, err)
	assert.Equal(t, Action{Intent: IntentMove, Params: "N"}, a)
}

func TestParse_MoveInvalidDirection(t *testing.T) {
	_, err := Parse("MOVE NE")
	assert.Error(t, err)
}

func TestParse_Paint(t *testing.T) {
	a, err := Parse("PAINT #f00")
	assert.NoError(t, err)
	assert.Equal(t, IntentPaint, a.Intent)
	assert.Equal(t, "#FF0000", a.Params)
}

func TestParse_PaintEmptyColor(t *testing.T) {
	_, err := Parse("PAINT")
	assert.Error(t, err)
}

func TestParse_Speak(t *testing.T) {
	a, err := Parse("SPEAK hello there")
	assert.NoError(t, err)
	assert.Equal(t, Action{Intent: IntentSpeak, Params: "hello there"}, a)
}

func TestParse_SpeakEmptyText(t *testing.T) {
	_, err := Parse("SPEAK   ")
	assert.Error(t, err)
}

func TestParse_WaitAndSkip(t *testing.T) {
	a, err := Parse("wait")
	assert.NoError(t, err)
	assert.Equal(t, Action{Intent: IntentWait}, a)

	a, err = Parse("SKIP")
	assert.NoError(t, err)
	assert.Equal(t, Action{Intent: IntentSkip}, a)
}

func TestParse_UnknownIntent(t *testing.T) {
	_, err := Parse("DANCE")
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("   ")
	assert.Error(t, err)
}

func TestNormalizeColor_ShortHexExpands(t *testing.T) {
	c, err := NormalizeColor("#abc")
	assert.NoError(t, err)
	assert.Equal(t, "#AABBCC", c)
}

func TestNormalizeColor_FullHexUppercases(t *testing.T) {
	c, err := NormalizeColor("#ffffff")
	assert.NoError(t, err)
	assert.Equal(t, "#FFFFFF", c)
}

func TestNormalizeColor_NonHexPassesThrough(t *testing.T) {
	c, err := NormalizeColor("red")
	assert.NoError(t, err)
	assert.Equal(t, "red", c)
}

func TestNormalizeColor_Empty(t *testing.T) {
	_, err := NormalizeColor("")
	assert.Error(t, err)
}

func TestMarshalUnmarshalParams_RoundTrip(t *testing.T) {
	raw, err := MarshalParams(Action{Intent: IntentMove, Params: "N"})
	assert.NoError(t, err)

	params, err := UnmarshalParams(raw)
	assert.NoError(t, err)
	assert.Equal(t, "N", params)
}

func TestMarshalUnmarshalResult_RoundTrip(t *testing.T) {
	r := Result{Outcome: OutcomeConflictLost, Reason: "Lost move conflict to bob", Winner: "bob"}
	raw, err := MarshalResult(r)
	assert.NoError(t, err)

	got, err := UnmarshalResult(raw)
	assert.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestUnmarshalResult_Empty(t *testing.T) {
	got, err := UnmarshalResult("")
	assert.NoError(t, err)
	assert.Equal(t, Result{}, got)
}

func TestDirectionDelta(t *testing.T) {
	dx, dy := DirNorth.Delta()
	assert.Equal(t, 0, dx)
	assert.Equal(t, -1, dy)

	dx, dy = DirEast.Delta()
	assert.Equal(t, 1, dx)
	assert.Equal(t, 0, dy)
}
