package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func starts(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartTime)
	}
	return out
}

func TestComputeAvailableSlots(t *testing.T) {
	e := NewEngine(DefaultGridMinutes)

	t.Run("EmptyDay", func(t *testing.T) {
		slots, err := e.ComputeAvailableSlots("09:00", "12:00", 60, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00"}, starts(slots))
		assert.Equal(t, Slot{StartTime: "11:00", EndTime: "12:00"}, slots[len(slots)-1])
	})

	t.Run("ExactFit", func(t *testing.T) {
		slots, err := e.ComputeAvailableSlots("09:00", "10:00", 60, nil)
		require.NoError(t, err)
		assert.Equal(t, []Slot{{StartTime: "09:00", EndTime: "10:00"}}, slots)
	})

	t.Run("DoesNotFit", func(t *testing.T) {
		slots, err := e.ComputeAvailableSlots("09:00", "10:00", 90, nil)
		require.NoError(t, err)
		assert.NotNil(t, slots)
		assert.Empty(t, slots)
	})

	t.Run("AroundBooking", func(t *testing.T) {
		booked := []TimeRange{{StartTime: "10:00", EndTime: "11:00"}}
		slots, err := e.ComputeAvailableSlots("09:00", "12:00", 60, booked)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "11:00"}, starts(slots))
	})

	t.Run("FullyBooked", func(t *testing.T) {
		booked := []TimeRange{{StartTime: "09:00", EndTime: "12:00"}}
		slots, err := e.ComputeAvailableSlots("09:00", "12:00", 30, booked)
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("OffGridOpening", func(t *testing.T) {
		slots, err := e.ComputeAvailableSlots("09:15", "11:00", 45, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:15", "09:45", "10:15"}, starts(slots))
	})

	t.Run("CustomGrid", func(t *testing.T) {
		slots, err := NewEngine(15).ComputeAvailableSlots("09:00", "10:00", 30, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:15", "09:30"}, starts(slots))
	})

	t.Run("AcceptsSQLTimeShape", func(t *testing.T) {
		booked := []TimeRange{{StartTime: "09:00:00", EndTime: "09:30:00"}}
		slots, err := e.ComputeAvailableSlots("9:00", "10:00", 30, booked)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:30"}, starts(slots))
	})
}

func TestComputeAvailableSlotsValidation(t *testing.T) {
	e := NewEngine(0)
	assert.Equal(t, DefaultGridMinutes, e.Grid())

	cases := []struct {
		name     string
		open     string
		close    string
		duration int
		booked   []TimeRange
	}{
		{name: "ZeroDuration", open: "09:00", close: "10:00", duration: 0},
		{name: "NegativeDuration", open: "09:00", close: "10:00", duration: -30},
		{name: "OpenAfterClose", open: "18:00", close: "09:00", duration: 30},
		{name: "OpenEqualsClose", open: "09:00", close: "09:00", duration: 30},
		{name: "MalformedOpen", open: "9am", close: "10:00", duration: 30},
		{name: "MalformedBooking", open: "09:00", close: "10:00", duration: 30,
			booked: []TimeRange{{StartTime: "09:00", EndTime: "nope"}}},
		{name: "InvertedBooking", open: "09:00", close: "10:00", duration: 30,
			booked: []TimeRange{{StartTime: "09:30", EndTime: "09:00"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slots, err := e.ComputeAvailableSlots(tc.open, tc.close, tc.duration, tc.booked)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Nil(t, slots)
		})
	}
}

func TestSlotProperties(t *testing.T) {
	e := NewEngine(DefaultGridMinutes)
	booked := []TimeRange{
		{StartTime: "10:10", EndTime: "10:40"},
		{StartTime: "13:00", EndTime: "14:30"},
		{StartTime: "16:45", EndTime: "17:00"},
	}
	busy, err := ParseRanges(booked)
	require.NoError(t, err)

	for _, duration := range []int{15, 30, 45, 60, 90, 120, 600} {
		slots, err := e.ComputeAvailableSlots("08:00", "18:00", duration, booked)
		require.NoError(t, err)

		prev := -1
		for _, s := range slots {
			iv, err := ParseRange(TimeRange(s))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, iv.Start, 8*60)
			assert.LessOrEqual(t, iv.End, 18*60)
			assert.Equal(t, duration, iv.End-iv.Start)
			assert.Greater(t, iv.Start, prev, "slots must be strictly ascending")
			prev = iv.Start
			for _, b := range busy {
				assert.False(t, Overlaps(iv, b), "slot %v overlaps %v", s, b)
			}
		}
	}

	slots, err := e.ComputeAvailableSlots("08:00", "09:00", 61, nil)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestHasConflict(t *testing.T) {
	e := NewEngine(DefaultGridMinutes)
	booked := []TimeRange{{StartTime: "09:00", EndTime: "10:00"}}

	t.Run("TouchingEnd", func(t *testing.T) {
		conflict, err := e.HasConflict("10:00", "10:30", booked)
		require.NoError(t, err)
		assert.False(t, conflict)
	})

	t.Run("TouchingStart", func(t *testing.T) {
		conflict, err := e.HasConflict("08:00", "09:00", booked)
		require.NoError(t, err)
		assert.False(t, conflict)
	})

	t.Run("PartialOverlap", func(t *testing.T) {
		conflict, err := e.HasConflict("09:30", "10:30", booked)
		require.NoError(t, err)
		assert.True(t, conflict)
	})

	t.Run("SingleMinute", func(t *testing.T) {
		conflict, err := e.HasConflict("09:59", "10:30", booked)
		require.NoError(t, err)
		assert.True(t, conflict)
	})

	t.Run("Contained", func(t *testing.T) {
		conflict, err := e.HasConflict("08:00", "11:00", booked)
		require.NoError(t, err)
		assert.True(t, conflict)
	})

	t.Run("NoBookings", func(t *testing.T) {
		conflict, err := e.HasConflict("09:00", "10:00", nil)
		require.NoError(t, err)
		assert.False(t, conflict)
	})

	t.Run("InvalidCandidate", func(t *testing.T) {
		_, err := e.HasConflict("10:00", "10:00", booked)
		assert.True(t, IsValidation(err))
	})
}

func TestOverlapsIsSymmetric(t *testing.T) {
	a := Interval{Start: 540, End: 600}
	b := Interval{Start: 570, End: 630}
	c := Interval{Start: 600, End: 660}

	assert.True(t, Overlaps(a, b))
	assert.True(t, Overlaps(b, a))
	assert.False(t, Overlaps(a, c))
	assert.False(t, Overlaps(c, a))
	assert.True(t, Overlaps(a, a))
}

func TestSlotsFrom(t *testing.T) {
	slots := []Slot{
		{StartTime: "09:00", EndTime: "10:00"},
		{StartTime: "09:30", EndTime: "10:30"},
		{StartTime: "10:00", EndTime: "11:00"},
	}
	assert.Equal(t, []string{"09:30", "10:00"}, starts(SlotsFrom(slots, 9*60+30)))
	assert.Empty(t, SlotsFrom(slots, 11*60))
	assert.Len(t, SlotsFrom(slots, 0), 3)
}
