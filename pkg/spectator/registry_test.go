package spectator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRegistryTypeMismatchReturnsNoOp covers property 5: once "x" is
// bound to a Counter, requesting a Timer for the same Id does not
// replace the binding — the original counter keeps accumulating, the
// caller gets a sink Timer, and the mismatch callback fires exactly
// once per mismatched lookup.
func TestRegistryTypeMismatchReturnsNoOp(t *testing.T) {
	var mismatches []string
	reg := NewRegistry(10_000, NewManualClock(), func(id *Id, kind string) {
		mismatches = append(mismatches, kind)
	})

	id := NewIdEmpty("x")
	counter := reg.Counter(id)
	counter.Add(5)

	timer := reg.Timer(id)
	timer.Record(1_000_000)

	assert.Equal(t, int64(5), counter.Count(), "the original counter binding is untouched by the mismatched lookup")
	assert.Equal(t, []string{"timer"}, mismatches)

	// The sink timer is independent of any registry state: recording on
	// it must not panic and must not surface through Measurements().
	again := reg.Counter(id)
	assert.Same(t, counter, again, "a matching-kind lookup still returns the original meter")
}

func TestRegistryCreationIsIdempotentPerId(t *testing.T) {
	reg := NewRegistry(10_000, NewManualClock(), nil)
	id := NewId("requests", map[string]string{"method": "GET"})

	a := reg.Counter(id)
	b := reg.Counter(NewId("requests", map[string]string{"method": "GET"}))
	assert.Same(t, a, b, "two Ids with equal (name, tags) resolve to the same meter instance")
}

func TestRegistrySweepRemovesExpiredMeters(t *testing.T) {
	clock := NewManualClock()
	reg := NewRegistry(10_000, clock, nil)
	reg.Gauge(NewIdEmpty("temp")).Set(42)

	clock.SetWall(16 * 60 * 1000)
	reg.Sweep(clock.Now())

	assert.Empty(t, reg.Measurements(), "a meter with no activity within its TTL is swept")
}

func TestRegistryCloseDrainsAfterFinalSnapshot(t *testing.T) {
	reg := NewRegistry(10_000, NewManualClock(), nil)
	reg.Counter(NewIdEmpty("requests")).Add(3)

	final := reg.Close()
	assert.Len(t, final, 1, "Close reports one last snapshot of everything registered")

	assert.Empty(t, reg.Measurements(), "Close drains the registry so nothing lingers past shutdown")

	again := reg.Close()
	assert.Empty(t, again, "Close is idempotent: a second call does nothing")
}
