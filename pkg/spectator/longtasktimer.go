package spectator

import "sync"

// LongTaskTimer tracks tasks whose duration may span many publish
// steps (batch jobs, long-lived connections). Unlike Timer it samples
// live state rather than step-rotating: each Measure call reports how
// many tasks are currently running and the sum of their elapsed time,
// computed on the spot from monotonic start times.
type LongTaskTimer struct {
	meterBase
	mu     sync.Mutex
	tasks  map[int64]int64 // task id -> monotonic start time (ns)
	nextID int64
}

func newLongTaskTimer(id *Id, clock Clock) *LongTaskTimer {
	return &LongTaskTimer{
		meterBase: newMeterBase(id, clock),
		tasks:     make(map[int64]int64),
	}
}

// Start records a new in-flight task and returns a handle for Stop.
func (t *LongTaskTimer) Start() int64 {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.tasks[id] = t.clock.Monotonic()
	t.mu.Unlock()
	t.touch(t.clock.Now())
	return id
}

// Stop ends the task identified by taskID and returns its elapsed time
// in nanoseconds. Stopping an unknown or already-stopped id returns -1.
func (t *LongTaskTimer) Stop(taskID int64) int64 {
	t.mu.Lock()
	start, ok := t.tasks[taskID]
	if ok {
		delete(t.tasks, taskID)
	}
	t.mu.Unlock()
	if !ok {
		return -1
	}
	t.touch(t.clock.Now())
	return t.clock.Monotonic() - start
}

// ActiveTasks returns the number of tasks currently in flight.
func (t *LongTaskTimer) ActiveTasks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

func (t *LongTaskTimer) Measure(now int64) []Measurement {
	t.mu.Lock()
	monoNow := t.clock.Monotonic()
	n := len(t.tasks)
	var totalNanos int64
	for _, start := range t.tasks {
		totalNanos += monoNow - start
	}
	t.mu.Unlock()

	return []Measurement{
		{Id: t.id.withStatistic(StatActiveTasks), Timestamp: now, Value: float64(n)},
		{Id: t.id.withStatistic(StatDuration), Timestamp: now, Value: float64(totalNanos) / nanosPerSecond},
	}
}
