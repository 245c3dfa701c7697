package spectator

import (
	"math"
	"sync"
	"time"
	"weak"

	"github.com/atlasmetrics/spectator-go/pkg/spectatorlog"
)

// Liveness decides whether a polled source is still reachable. Use
// WeakLiveness when the caller owns a real Go pointer (the common
// case); use PredicateLiveness when the source is a closure over
// something else (a connection pool, a counter embedded in a larger
// struct) that can report its own liveness.
type Liveness struct {
	check func() bool
}

// WeakLiveness builds a Liveness from a weak.Pointer to a value the
// caller owns strongly elsewhere. Once every strong reference to ptr is
// gone and it is collected, check() starts reporting false — the Go
// 1.24 substitute for the source language's weak-reference-based
// reclamation.
func WeakLiveness[T any](ptr *T) Liveness {
	wp := weak.Make(ptr)
	return Liveness{check: func() bool { return wp.Value() != nil }}
}

// PredicateLiveness builds a Liveness from a user-supplied "is still
// alive" callback.
func PredicateLiveness(fn func() bool) Liveness {
	return Liveness{check: fn}
}

func (l Liveness) alive() bool {
	if l.check == nil {
		return true
	}
	return l.check()
}

type polledGaugeEntry struct {
	liveness Liveness
	valueFn  func() float64
}

type polledCounterEntry struct {
	liveness  Liveness
	valueFn   func() int64
	lastValue int64
	hasLast   bool
}

// PolledMeterScheduler periodically samples externally owned objects
// and writes the results into registry gauges/counters. It runs a
// single worker goroutine by default so an expensive or misbehaving
// user callback cannot fan out across many threads (§5).
type PolledMeterScheduler struct {
	registry *Registry
	clock    Clock
	interval time.Duration

	mu         sync.Mutex
	gaugeIds   map[uint64]*Id
	gauges     map[uint64][]*polledGaugeEntry
	counterIds map[uint64]*Id
	counters   map[uint64][]*polledCounterEntry

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// NewPolledMeterScheduler returns a scheduler that samples every
// interval, writing results into registry via clock's time source.
func NewPolledMeterScheduler(registry *Registry, interval time.Duration, clock Clock) *PolledMeterScheduler {
	return &PolledMeterScheduler{
		registry:   registry,
		clock:      clock,
		interval:   interval,
		gaugeIds:   make(map[uint64]*Id),
		gauges:     make(map[uint64][]*polledGaugeEntry),
		counterIds: make(map[uint64]*Id),
		counters:   make(map[uint64][]*polledCounterEntry),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// PollGauge registers valueFn to be sampled under id on every tick.
// Multiple entries registered under the same Id are summed before being
// written to the underlying gauge (per-resource values aggregated to
// one published series).
func (s *PolledMeterScheduler) PollGauge(id *Id, liveness Liveness, valueFn func() float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gaugeIds[id.Hash()] = id
	s.gauges[id.Hash()] = append(s.gauges[id.Hash()], &polledGaugeEntry{liveness: liveness, valueFn: valueFn})
}

// PollCounter registers valueFn as a monotonic source: on each tick the
// positive delta since the previous reading is added to the underlying
// counter. A decrease is treated as a source reset (the baseline
// updates, but no delta is emitted for that tick).
func (s *PolledMeterScheduler) PollCounter(id *Id, liveness Liveness, valueFn func() int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counterIds[id.Hash()] = id
	s.counters[id.Hash()] = append(s.counters[id.Hash()], &polledCounterEntry{liveness: liveness, valueFn: valueFn})
}

// Remove cancels every polled binding registered under id.
func (s *PolledMeterScheduler) Remove(id *Id) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.gauges, id.Hash())
	delete(s.gaugeIds, id.Hash())
	delete(s.counters, id.Hash())
	delete(s.counterIds, id.Hash())
}

// Start launches the worker goroutine. Calling Start more than once
// without an intervening Stop has no effect beyond the first call.
func (s *PolledMeterScheduler) Start() {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.stopped)
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-s.done:
					return
				case <-ticker.C:
					s.tick()
				}
			}
		}()
	})
}

// Stop halts the worker goroutine and blocks until it has exited.
func (s *PolledMeterScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.stopped
}

func (s *PolledMeterScheduler) tick() {
	now := s.clock.Now()

	s.mu.Lock()
	gaugeWork := make(map[uint64][]*polledGaugeEntry, len(s.gauges))
	for h, entries := range s.gauges {
		kept := entries[:0:0]
		for _, e := range entries {
			if e.liveness.alive() {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(s.gauges, h)
			if id, ok := s.gaugeIds[h]; ok {
				s.registry.Gauge(id).Set(nan)
			}
			delete(s.gaugeIds, h)
			continue
		}
		s.gauges[h] = kept
		gaugeWork[h] = kept
	}

	counterWork := make(map[uint64][]*polledCounterEntry, len(s.counters))
	for h, entries := range s.counters {
		kept := entries[:0:0]
		for _, e := range entries {
			if e.liveness.alive() {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(s.counters, h)
			delete(s.counterIds, h)
			continue
		}
		s.counters[h] = kept
		counterWork[h] = kept
	}
	gaugeIds := make(map[uint64]*Id, len(s.gaugeIds))
	for h, id := range s.gaugeIds {
		gaugeIds[h] = id
	}
	counterIds := make(map[uint64]*Id, len(s.counterIds))
	for h, id := range s.counterIds {
		counterIds[h] = id
	}
	s.mu.Unlock()

	for h, entries := range gaugeWork {
		id, ok := gaugeIds[h]
		if !ok {
			continue
		}
		sum, any := s.sampleGauges(entries)
		g := s.registry.Gauge(id)
		if any {
			g.Set(sum)
		} else {
			g.Set(nan)
		}
	}

	for h, entries := range counterWork {
		id, ok := counterIds[h]
		if !ok {
			continue
		}
		delta := s.sampleCounters(entries, now)
		if delta > 0 {
			s.registry.Counter(id).Add(delta)
		}
	}
}

func (s *PolledMeterScheduler) sampleGauges(entries []*polledGaugeEntry) (sum float64, any bool) {
	for _, e := range entries {
		v := s.safeFloat(e.valueFn)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		any = true
	}
	return sum, any
}

func (s *PolledMeterScheduler) sampleCounters(entries []*polledCounterEntry, now int64) int64 {
	var total int64
	for _, e := range entries {
		v := s.safeInt(e.valueFn)
		if !e.hasLast {
			e.lastValue = v
			e.hasLast = true
			continue
		}
		delta := v - e.lastValue
		e.lastValue = v
		if delta > 0 {
			total += delta
		}
	}
	_ = now
	return total
}

func (s *PolledMeterScheduler) safeFloat(fn func() float64) (v float64) {
	defer func() {
		if r := recover(); r != nil {
			spectatorlog.ComponentWarn("polled", "gauge callback panicked:", r)
			v = nan
		}
	}()
	return fn()
}

func (s *PolledMeterScheduler) safeInt(fn func() int64) (v int64) {
	defer func() {
		if r := recover(); r != nil {
			spectatorlog.ComponentWarn("polled", "counter callback panicked:", r)
			v = 0
		}
	}()
	return fn()
}
