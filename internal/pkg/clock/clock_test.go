package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	in := time.Date(2026, 3, 14, 23, 59, 1, 5, loc)

	got := StartOfDay(in)

	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestSameDay(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)

	// 20:00 UTC is already the next day in WIB.
	a := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 15, 1, 0, 0, 0, wib)

	assert.True(t, SameDay(a, b, wib))
	assert.False(t, SameDay(a, b, time.UTC))
}

func TestTimeClocker_Now(t *testing.T) {
	loc := time.FixedZone("X", -3*3600)
	c := New(loc)
	assert.Equal(t, loc, c.Now().Location())
	assert.Equal(t, time.Local, New(nil).Now().Location())
}
