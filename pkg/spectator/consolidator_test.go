package spectator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAvgConsolidator covers property 10: feeding values 0..11 at
// primary-step timestamps 0,5s,...,55s into a 5s-primary/60s-publish
// average consolidator yields 5.5 at t=60s, and a single missing
// primary sample reduces the consolidated value by 1/12 of its
// contribution (the divisor is always the full multiple).
func TestAvgConsolidator(t *testing.T) {
	const primaryStep = 5_000
	const multiple = 12

	c := newAvgConsolidator(multiple, primaryStep)
	for i := int64(0); i < 12; i++ {
		c.Update(i*primaryStep, float64(i))
	}
	assert.InDelta(t, 5.5, c.Value(60_000), 1e-9, "sum 1..11 (66) divided by the full multiple (12)")

	// Drop one sample (value 6 at t=30s) and confirm the consolidated
	// value falls by exactly 6/12, the missing sample's contribution.
	c2 := newAvgConsolidator(multiple, primaryStep)
	for i := int64(0); i < 12; i++ {
		if i == 6 {
			continue
		}
		c2.Update(i*primaryStep, float64(i))
	}
	want := 5.5 - 6.0/12.0
	assert.InDelta(t, want, c2.Value(60_000), 1e-9, "a missing sub-interval dilutes toward zero, divisor stays the multiple")
}

// TestAvgConsolidatorMultiStepGap covers property 11: once the gap
// since the newest sample reaches the full consolidated window, Value
// returns NaN regardless of older buffered samples.
func TestAvgConsolidatorMultiStepGap(t *testing.T) {
	const primaryStep = 5_000
	const multiple = 12

	c := newAvgConsolidator(multiple, primaryStep)
	c.Update(0, 1)

	// A gap of exactly `multiple` primary steps (60s) from the only
	// sample means the window has fully rolled past it.
	assert.True(t, math.IsNaN(c.Value(multiple*primaryStep)), "a gap spanning the whole consolidated window must read as NaN")
}

func TestMaxConsolidator(t *testing.T) {
	const primaryStep = 5_000
	const multiple = 4

	c := newMaxConsolidator(multiple, primaryStep)
	c.Update(0, 2)
	c.Update(primaryStep, 9)
	c.Update(2*primaryStep, 3)
	c.Update(3*primaryStep, 1)

	assert.Equal(t, 9.0, c.Value(4*primaryStep))
}

func TestLastConsolidatorExpiresAfterOnePublishStep(t *testing.T) {
	c := newLastConsolidator(5_000, 60_000)
	c.Update(0, 42)
	assert.Equal(t, 42.0, c.Value(30_000))
	assert.True(t, math.IsNaN(c.Value(60_001)), "a last-value consolidator older than one publish step should expire")
}

func TestNoneConsolidatorPassesThrough(t *testing.T) {
	c := newNoneConsolidator()
	assert.True(t, c.IsEmpty())
	c.Update(0, 7)
	assert.False(t, c.IsEmpty())
	assert.Equal(t, 7.0, c.Value(0))
}
