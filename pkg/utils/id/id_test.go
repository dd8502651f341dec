package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUUID(t *testing.T) {
	a, b := NewUUID(), NewUUID()
	assert.NotEqual(t, a, b)
	assert.NoError(t, ValidateUUID(a))
	assert.ErrorIs(t, ValidateUUID("not-a-uuid"), ErrInvalidUUID)
}

func TestNewULID_Monotonic(t *testing.T) {
	prev := NewULID()
	for i := 0; i < 100; i++ {
		next := NewULID()
		assert.Less(t, prev, next)
		assert.NoError(t, ValidateULID(next))
		prev = next
	}
}

func TestNew(t *testing.T) {
	assert.Len(t, New(TypeUUID), 36)
	assert.Len(t, New(TypeULID), 26)
	assert.Len(t, New("unknown"), 36)
}
