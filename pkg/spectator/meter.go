package spectator

// Statistic tag values used to distinguish the multiple measurements a
// single meter can publish in one step (e.g. a Timer publishes count,
// totalTime, totalOfSquares and max under the same base Id).
const (
	StatCount          = "count"
	StatTotalAmount    = "totalAmount"
	StatTotalTime      = "totalTime"
	StatTotalOfSquares = "totalOfSquares"
	StatMax            = "max"
	StatGauge          = "gauge"
	StatActiveTasks    = "activeTasks"
	StatDuration       = "duration"
	StatPercentile     = "percentile"
)

// Measurement is a single (Id, value) pair produced by polling a meter
// for its last completed step. Value is NaN when a statistic has
// nothing to report for that step; publishers that choose to omit NaNs
// from the wire payload filter on this (see wire.go).
type Measurement struct {
	Id        *Id
	Timestamp int64
	Value     float64
}

// Meter is the common interface every registered instrument satisfies.
// Measure is called once per publish cycle by the scheduler; it must
// roll the meter's internal step buckets forward as a side effect even
// if the caller discards the result, so that a meter which is never
// polled still behaves correctly once polling resumes.
type Meter interface {
	// MeterId returns the base Id the meter was registered under.
	MeterId() *Id

	// Measure returns the measurements to publish for the step ending
	// at or before now.
	Measure(now int64) []Measurement

	// HasExpired reports whether the meter has been idle long enough
	// that the registry should drop it (see Registry's expiration
	// sweep in registry.go).
	HasExpired(now int64) bool
}
