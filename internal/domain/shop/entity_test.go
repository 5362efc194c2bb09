package shop

import (
	"testing"

	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItem_Reserve(t *testing.T) {
	it, err := NewItem(NewItemParams{ID: "i", ClassID: "c", Name: "Wizard hat", Price: 30, Slot: student.SlotHat, Stock: 1})
	require.NoError(t, err)
	assert.True(t, it.IsAvatarItem())
	assert.Equal(t, "i", it.AvatarRef())

	require.NoError(t, it.Reserve())
	assert.Equal(t, 0, it.Stock)
	assert.ErrorIs(t, it.Reserve(), ErrOutOfStock)
}

func TestItem_UnlimitedStock(t *testing.T) {
	it, err := NewItem(NewItemParams{ID: "i", ClassID: "c", Name: "Sticker", Price: 5, Stock: UnlimitedStock})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, it.Reserve())
	}
	assert.Equal(t, UnlimitedStock, it.Stock)
	assert.False(t, it.IsAvatarItem())
}

func TestItem_Validation(t *testing.T) {
	_, err := NewItem(NewItemParams{ID: "i", ClassID: "c", Name: "x", Price: -1})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = NewItem(NewItemParams{ID: "i", ClassID: "c", Name: "x", Slot: student.Slot("cape")})
	assert.ErrorIs(t, err, student.ErrInvalidSlot)
}
