package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donation-matrix-api/internal/models"
)

func indexSlot(level, position int, participantID string, completed bool) models.QueueSlot {
	slot := models.QueueSlot{Level: level, Position: position, LevelCompleted: completed}
	if participantID != "" {
		id := participantID
		slot.ParticipantID = &id
	}
	return slot
}

func TestReceiverIndexOrdersByPositionAndSkipsIneligible(t *testing.T) {
	slots := []models.QueueSlot{
		indexSlot(2, 9, "i", false),
		indexSlot(2, 3, "c", true),
		indexSlot(2, 4, "", false),
		indexSlot(2, 7, "g", false),
		indexSlot(2, 1, "self", false),
		indexSlot(1, 2, "other-level", false),
		indexSlot(2, 5, "e", false),
	}
	idx := NewReceiverIndex(2, slots, "self")
	require.Equal(t, 3, idx.Len())

	head, ok := idx.Peek()
	require.True(t, ok)
	assert.Equal(t, 5, head.Position)

	var got []int
	for i := 0; i < 7; i++ {
		slot, ok := idx.Next()
		require.True(t, ok)
		got = append(got, slot.Position)
	}
	assert.Equal(t, []int{5, 7, 9, 5, 7, 9, 5}, got)
	assert.Equal(t, 3, idx.Len())
}

func TestReceiverIndexEmpty(t *testing.T) {
	idx := NewReceiverIndex(1, []models.QueueSlot{indexSlot(1, 1, "a", true)})
	_, ok := idx.Next()
	assert.False(t, ok)
	_, ok = idx.Peek()
	assert.False(t, ok)
	assert.Zero(t, idx.Len())
}
