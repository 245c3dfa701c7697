package spectator

import "math"

// Consolidator converts a stream of primary-step samples into one
// value per (coarser) consolidated step. Which variant applies to a
// given measurement is chosen by its statistic tag (see
// ConsolidatorFor).
type Consolidator interface {
	// Update folds in one primary-step sample observed at timestamp t.
	Update(t int64, value float64)
	// Value returns the consolidated value for the window ending at t.
	Value(t int64) float64
	// IsEmpty reports whether every buffered sample is NaN.
	IsEmpty() bool
}

// ConsolidatorFor picks the Consolidator variant for a measurement
// based on its statistic tag, per §4.8's selection policy: counters,
// totals and totalOfSquares average; max, duration and activeTasks take
// the max; gauge reports the last value.
func ConsolidatorFor(stat string, primaryStepMillis, publishStepMillis int64) Consolidator {
	multiple := publishStepMillis / primaryStepMillis
	if multiple <= 1 {
		return newNoneConsolidator()
	}
	switch stat {
	case StatMax, StatDuration, StatActiveTasks:
		return newMaxConsolidator(multiple, primaryStepMillis)
	case StatGauge:
		return newLastConsolidator(primaryStepMillis, publishStepMillis)
	default:
		return newAvgConsolidator(multiple, primaryStepMillis)
	}
}

// noneConsolidator passes values straight through; used when the
// consolidated step equals the primary step (multiple == 1).
type noneConsolidator struct {
	value float64
}

func newNoneConsolidator() *noneConsolidator {
	return &noneConsolidator{value: nan}
}

func (c *noneConsolidator) Update(_ int64, value float64) { c.value = value }
func (c *noneConsolidator) Value(_ int64) float64         { return c.value }
func (c *noneConsolidator) IsEmpty() bool                 { return math.IsNaN(c.value) }

// ringConsolidator is the shared ring-buffer bookkeeping used by Avg
// and Max: the last `multiple` primary values, indexed by
// (t / primaryStep) mod multiple.
type ringConsolidator struct {
	multiple    int64
	primaryStep int64
	buf         []float64
	bufIndex    []int64 // the (t/primaryStep) bucket index each slot was last written for, -1 if never
}

func newRingConsolidator(multiple, primaryStepMillis int64) ringConsolidator {
	buf := make([]float64, multiple)
	idx := make([]int64, multiple)
	for i := range buf {
		buf[i] = nan
		idx[i] = -1
	}
	return ringConsolidator{multiple: multiple, primaryStep: primaryStepMillis, buf: buf, bufIndex: idx}
}

func (r *ringConsolidator) slot(t int64) (int64, int) {
	bucket := t / r.primaryStep
	return bucket, int(((bucket % r.multiple) + r.multiple) % r.multiple)
}

func (r *ringConsolidator) put(t int64, value float64) {
	bucket, slot := r.slot(t)
	r.buf[slot] = value
	r.bufIndex[slot] = bucket
}

// windowValues returns the buffered values for the `multiple` buckets
// ending at (and including) the bucket containing t, with entries whose
// recorded bucket index doesn't match treated as missing (NaN). present
// is how many of those `multiple` slots hold a real sample.
func (r *ringConsolidator) windowValues(t int64) (values []float64, present int) {
	endBucket, _ := r.slot(t)
	values = make([]float64, r.multiple)
	for i := int64(0); i < r.multiple; i++ {
		wantBucket := endBucket - i
		_, slot := r.slot(wantBucket * r.primaryStep)
		if r.bufIndex[slot] == wantBucket && !math.IsNaN(r.buf[slot]) {
			values[i] = r.buf[slot]
			present++
		} else {
			values[i] = nan
		}
	}
	return values, present
}

// isEmpty reports whether no slot of the ring holds a non-NaN sample.
func (r *ringConsolidator) isEmpty() bool {
	for i, v := range r.buf {
		if r.bufIndex[i] >= 0 && !math.IsNaN(v) {
			return false
		}
	}
	return true
}

type avgConsolidator struct {
	ringConsolidator
}

func newAvgConsolidator(multiple, primaryStepMillis int64) *avgConsolidator {
	return &avgConsolidator{ringConsolidator: newRingConsolidator(multiple, primaryStepMillis)}
}

func (c *avgConsolidator) Update(t int64, value float64) { c.put(t, value) }

// Value implements the gap-first rule: if the most recent sample is
// older than `multiple` primary steps before t, the whole window reads
// as NaN regardless of how many other samples happen to be buffered
// (a stale ring still holds old values at arbitrary slots). Otherwise
// missing sub-intervals count as zero (dilution toward zero) as long as
// at least one sample is present in the window; the divisor is always
// `multiple`, never the present count.
func (c *avgConsolidator) Value(t int64) float64 {
	endBucket, _ := c.slot(t)
	newestBucket := int64(-1)
	for _, b := range c.bufIndex {
		if b > newestBucket {
			newestBucket = b
		}
	}
	if newestBucket < 0 || endBucket-newestBucket >= c.multiple {
		return nan
	}

	values, present := c.windowValues(t)
	if present == 0 {
		return nan
	}
	var sum float64
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum / float64(c.multiple)
}

func (c *avgConsolidator) IsEmpty() bool {
	return c.isEmpty()
}

type maxConsolidator struct {
	ringConsolidator
}

func newMaxConsolidator(multiple, primaryStepMillis int64) *maxConsolidator {
	return &maxConsolidator{ringConsolidator: newRingConsolidator(multiple, primaryStepMillis)}
}

func (c *maxConsolidator) Update(t int64, value float64) { c.put(t, value) }

func (c *maxConsolidator) Value(t int64) float64 {
	values, present := c.windowValues(t)
	if present == 0 {
		return nan
	}
	max := nan
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(max) || v > max {
			max = v
		}
	}
	return max
}

func (c *maxConsolidator) IsEmpty() bool {
	return c.isEmpty()
}

// lastConsolidator reports the most recent non-NaN value observed,
// provided it is not older than one consolidated step.
type lastConsolidator struct {
	publishStepMillis int64
	lastValue         float64
	lastTimestamp     int64
	hasValue          bool
}

func newLastConsolidator(primaryStepMillis, publishStepMillis int64) *lastConsolidator {
	return &lastConsolidator{publishStepMillis: publishStepMillis, lastValue: nan, lastTimestamp: -1}
}

func (c *lastConsolidator) Update(t int64, value float64) {
	if math.IsNaN(value) {
		return
	}
	if t >= c.lastTimestamp {
		c.lastValue = value
		c.lastTimestamp = t
		c.hasValue = true
	}
}

func (c *lastConsolidator) Value(t int64) float64 {
	if !c.hasValue || t-c.lastTimestamp > c.publishStepMillis {
		return nan
	}
	return c.lastValue
}

func (c *lastConsolidator) IsEmpty() bool {
	return !c.hasValue
}
