package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampHistoryLength(t *testing.T) {
	assert.Equal(t, DefaultHistoryLength, ClampHistoryLength(0))
	assert.Equal(t, DefaultHistoryLength, ClampHistoryLength(-3))
	assert.Equal(t, MinHistoryLength, ClampHistoryLength(MinHistoryLength))
	assert.Equal(t, MaxHistoryLength, ClampHistoryLength(MaxHistoryLength+100))
	assert.Equal(t, 7, ClampHistoryLength(7))
}

func TestClampChatLength(t *testing.T) {
	assert.Equal(t, 5, ClampChatLength(0, 5))
	assert.Equal(t, MinChatLength, ClampChatLength(MinChatLength-1, 0))
	assert.Equal(t, MaxChatLength, ClampChatLength(MaxChatLength+1, 5))
	assert.Equal(t, 10, ClampChatLength(10, 5))
}
