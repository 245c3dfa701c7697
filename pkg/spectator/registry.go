package spectator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atlasmetrics/spectator-go/pkg/spectatorlog"
)

// TypeMismatchHandler is invoked when a lookup requests one meter kind
// for an Id already bound to a different kind. It receives the Id and
// the kind that was requested so callers can log or propagate as they
// see fit; the registry always returns a no-op meter of the requested
// kind regardless of what the handler does.
type TypeMismatchHandler func(id *Id, requestedKind string)

// Registry is the process-wide container mapping Id to Meter. It is
// safe for concurrent use: meter creation is compute-if-absent, and the
// map itself is guarded by a RWMutex sized for the read-heavy
// (lookup-dominated) access pattern the teacher's caches use elsewhere.
type Registry struct {
	mu     sync.RWMutex
	meters map[uint64][]meterEntry

	stepMillis  int64
	clock       Clock
	onMismatch  TypeMismatchHandler
	closeOnce   sync.Once
	stopPolling func()

	// instanceID identifies this process across the lifetime of the
	// Registry. It has no bearing on meter identity or matching; it
	// exists purely so a server operator can correlate a run of
	// publish/eval requests (logged and sent as a request header) back
	// to one process across restarts.
	instanceID string
}

type meterEntry struct {
	id    *Id
	meter Meter
}

// NewRegistry returns an empty Registry reporting on stepMillis
// boundaries using clock as its time source. onMismatch may be nil, in
// which case mismatches are only logged.
func NewRegistry(stepMillis int64, clock Clock, onMismatch TypeMismatchHandler) *Registry {
	return &Registry{
		meters:     make(map[uint64][]meterEntry),
		stepMillis: stepMillis,
		clock:      clock,
		onMismatch: onMismatch,
		instanceID: uuid.NewString(),
	}
}

// NewRegistryWithScheduler returns a Registry plus a PolledMeterScheduler
// already started and wired so that Registry.Close stops it. pollInterval
// is typically the configured gaugePollingFrequency.
func NewRegistryWithScheduler(stepMillis int64, clock Clock, onMismatch TypeMismatchHandler, pollInterval time.Duration) (*Registry, *PolledMeterScheduler) {
	r := NewRegistry(stepMillis, clock, onMismatch)
	poller := NewPolledMeterScheduler(r, pollInterval, clock)
	poller.Start()
	r.attachScheduler(poller.Stop)
	return r, poller
}

// InstanceID returns the process-lifetime identifier stamped on this
// registry at construction, used by the publisher and log output to
// correlate requests back to the emitting process.
func (r *Registry) InstanceID() string { return r.instanceID }

func (r *Registry) reportMismatch(id *Id, kind string) {
	spectatorlog.ComponentWarn("registry", "type mismatch requesting", kind, "for", id.String())
	if r.onMismatch != nil {
		r.onMismatch(id, kind)
	}
}

// lookupOrCreate finds the existing meter with id.Equal semantics, or
// creates one via newFn and inserts it. Concurrent creation resolves by
// keeping the first inserted meter for that Id (compute-if-absent).
func (r *Registry) lookupOrCreate(id *Id, newFn func() Meter) (Meter, bool) {
	r.mu.RLock()
	for _, e := range r.meters[id.Hash()] {
		if e.id.Equal(id) {
			r.mu.RUnlock()
			return e.meter, true
		}
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.meters[id.Hash()] {
		if e.id.Equal(id) {
			return e.meter, true
		}
	}
	m := newFn()
	r.meters[id.Hash()] = append(r.meters[id.Hash()], meterEntry{id: id, meter: m})
	return m, false
}

// Counter returns the Counter bound to id, creating it if absent. If id
// is already bound to a different meter kind, a no-op Counter is
// returned and the mismatch handler is invoked.
func (r *Registry) Counter(id *Id) *Counter {
	m, _ := r.lookupOrCreate(id, func() Meter { return newCounter(id, r.stepMillis, r.clock) })
	if c, ok := m.(*Counter); ok {
		return c
	}
	r.reportMismatch(id, "counter")
	return newCounter(id, r.stepMillis, noopClock{})
}

// DistributionSummary returns the DistributionSummary bound to id,
// creating it if absent.
func (r *Registry) DistributionSummary(id *Id) *DistributionSummary {
	m, _ := r.lookupOrCreate(id, func() Meter { return newDistributionSummary(id, r.stepMillis, r.clock) })
	if d, ok := m.(*DistributionSummary); ok {
		return d
	}
	r.reportMismatch(id, "distributionSummary")
	return newDistributionSummary(id, r.stepMillis, noopClock{})
}

// Timer returns the Timer bound to id, creating it if absent.
func (r *Registry) Timer(id *Id) *Timer {
	m, _ := r.lookupOrCreate(id, func() Meter { return newTimer(id, r.stepMillis, r.clock) })
	if t, ok := m.(*Timer); ok {
		return t
	}
	r.reportMismatch(id, "timer")
	return newTimer(id, r.stepMillis, noopClock{})
}

// Gauge returns the Gauge bound to id, creating it if absent.
func (r *Registry) Gauge(id *Id) *Gauge {
	m, _ := r.lookupOrCreate(id, func() Meter { return newGauge(id, r.clock) })
	if g, ok := m.(*Gauge); ok {
		return g
	}
	r.reportMismatch(id, "gauge")
	return newGauge(id, noopClock{})
}

// MaxGauge returns the MaxGauge bound to id, creating it if absent.
func (r *Registry) MaxGauge(id *Id) *MaxGauge {
	m, _ := r.lookupOrCreate(id, func() Meter { return newMaxGauge(id, r.stepMillis, r.clock) })
	if g, ok := m.(*MaxGauge); ok {
		return g
	}
	r.reportMismatch(id, "maxGauge")
	return newMaxGauge(id, r.stepMillis, noopClock{})
}

// LongTaskTimer returns the LongTaskTimer bound to id, creating it if absent.
func (r *Registry) LongTaskTimer(id *Id) *LongTaskTimer {
	m, _ := r.lookupOrCreate(id, func() Meter { return newLongTaskTimer(id, r.clock) })
	if t, ok := m.(*LongTaskTimer); ok {
		return t
	}
	r.reportMismatch(id, "longTaskTimer")
	return newLongTaskTimer(id, noopClock{})
}

// PercentileTimer returns the PercentileTimer bound to id, creating it if absent.
func (r *Registry) PercentileTimer(id *Id) *PercentileTimer {
	m, _ := r.lookupOrCreate(id, func() Meter { return newPercentileTimer(id, r.stepMillis, r.clock) })
	if t, ok := m.(*PercentileTimer); ok {
		return t
	}
	r.reportMismatch(id, "percentileTimer")
	return newPercentileTimer(id, r.stepMillis, noopClock{})
}

// PercentileDistributionSummary returns the meter bound to id, creating
// it if absent.
func (r *Registry) PercentileDistributionSummary(id *Id) *PercentileDistributionSummary {
	m, _ := r.lookupOrCreate(id, func() Meter { return newPercentileDistributionSummary(id, r.stepMillis, r.clock) })
	if d, ok := m.(*PercentileDistributionSummary); ok {
		return d
	}
	r.reportMismatch(id, "percentileDistributionSummary")
	return newPercentileDistributionSummary(id, r.stepMillis, noopClock{})
}

// Register inserts a caller-supplied Meter (used by PolledMeterScheduler
// for externally sampled values). If id is already bound, the existing
// meter is kept and the supplied one is discarded.
func (r *Registry) Register(id *Id, m Meter) Meter {
	existing, _ := r.lookupOrCreate(id, func() Meter { return m })
	return existing
}

// State returns the id->Meter map snapshot, for patterns (IntervalCounter
// style derived-meter caches) that need to inspect what is registered.
func (r *Registry) State() map[uint64][]Meter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint64][]Meter, len(r.meters))
	for h, entries := range r.meters {
		ms := make([]Meter, len(entries))
		for i, e := range entries {
			ms[i] = e.meter
		}
		out[h] = ms
	}
	return out
}

// Measurements returns the measurements of every non-expired meter at
// the registry's current clock time.
func (r *Registry) Measurements() []Measurement {
	now := r.clock.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Measurement
	for _, entries := range r.meters {
		for _, e := range entries {
			if e.meter.HasExpired(now) {
				continue
			}
			out = append(out, e.meter.Measure(now)...)
		}
	}
	return out
}

// Sweep removes every meter that has expired as of now. Called by the
// scheduler once per primary step.
func (r *Registry) Sweep(now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, entries := range r.meters {
		kept := entries[:0]
		for _, e := range entries {
			if !e.meter.HasExpired(now) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(r.meters, h)
		} else {
			r.meters[h] = kept
		}
	}
}

// Close stops any background scheduling this registry owns, takes one
// final Measurements() snapshot so an embedding application gets a
// deterministic shutdown rather than relying on process exit, and then
// drains every meter: a Registry is not reused after Close, and leaving
// the map populated would let a caller observe stale state through a
// reference held past shutdown.
func (r *Registry) Close() []Measurement {
	var final []Measurement
	r.closeOnce.Do(func() {
		if r.stopPolling != nil {
			r.stopPolling()
		}
		final = r.Measurements()
		r.mu.Lock()
		r.meters = make(map[uint64][]meterEntry)
		r.mu.Unlock()
	})
	return final
}

// attachScheduler wires a stop function the Registry calls exactly once
// from Close; used by NewRegistryWithScheduler.
func (r *Registry) attachScheduler(stop func()) {
	r.stopPolling = stop
}

// noopClock is used for the sink meters returned on a type mismatch:
// its time never advances so the sink meter never rolls a step or
// reports anything but its identity value.
type noopClock struct{}

func (noopClock) Now() int64       { return 0 }
func (noopClock) Monotonic() int64 { return 0 }
