package servicecenter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotTypeForBands(t *testing.T) {
	assert.Equal(t, "urgent", SlotTypeFor(3))
	assert.Equal(t, "normal", SlotTypeFor(15))
	assert.Equal(t, "delayed", SlotTypeFor(45))
}

func TestSelectReturnsBestPlusFallbacks(t *testing.T) {
	reg := NewRegistry([]Center{
		{ID: "center_001", TimeZone: "UTC", Capacity: 10},
	})
	noOccupied := func(ctx context.Context, serviceCenter string) (map[time.Time]bool, error) {
		return map[time.Time]bool{}, nil
	}

	sel, ok, err := reg.Select(context.Background(), "normal", time.Now(), noOccupied)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "center_001", sel.ServiceCenter)
	assert.GreaterOrEqual(t, len(sel.FallbackSlots), 2)
	assert.True(t, sel.BestSlot.Before(sel.FallbackSlots[0]) || sel.BestSlot.Equal(sel.FallbackSlots[0]))
}

func TestSelectSkipsCenterAtCapacity(t *testing.T) {
	reg := NewRegistry([]Center{
		{ID: "center_full", TimeZone: "UTC", Capacity: 1},
		{ID: "center_open", TimeZone: "UTC", Capacity: 10},
	})
	occupiedFn := func(ctx context.Context, serviceCenter string) (map[time.Time]bool, error) {
		if serviceCenter == "center_full" {
			return map[time.Time]bool{time.Now(): true}, nil
		}
		return map[time.Time]bool{}, nil
	}

	sel, ok, err := reg.Select(context.Background(), "urgent", time.Now(), occupiedFn)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "center_open", sel.ServiceCenter)
}
