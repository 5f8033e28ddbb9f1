package suggestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetKeysNormalizeCaseAndWhitespace(t *testing.T) {
	a := EventTargetKey("  Yoga   CLASS ", " Gym ")
	b := EventTargetKey("yoga class", "gym")
	assert.Equal(t, a, b)
	assert.Equal(t, HashKey(a), HashKey(b))
	assert.Len(t, HashKey(a), 64)
}

func TestTargetKeyFieldBoundaries(t *testing.T) {
	a := EventTargetKey("a", "b c")
	b := EventTargetKey("a b", "c")
	assert.NotEqual(t, HashKey(a), HashKey(b), "field contents must not bleed across the separator")

	assert.NotEqual(t, HashKey(EventTargetKey("회의", "")), HashKey(TodoTargetKey("회의")),
		"an event and a todo with the same title are distinct targets")
}

func TestEmptyTitleProducesNoKey(t *testing.T) {
	assert.Nil(t, EventTargetKey("   ", "gym"))
	assert.Nil(t, TodoTargetKey(""))
	assert.Equal(t, "", HashKey(nil))
}

func TestRepeatGroupKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, HashKey(RepeatGroupKey(42)), HashKey(RepeatGroupKey(42)))
	assert.NotEqual(t, HashKey(RepeatGroupKey(42)), HashKey(RepeatGroupKey(43)))
}
