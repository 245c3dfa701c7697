package spectator

// Gauge reports a last-write-wins instantaneous value (queue depth, pool
// size, anything sampled rather than accumulated). Unlike Counter and
// DistributionSummary it is not step-rotated: the published value is
// simply whatever was last set, until the meter expires from inactivity
// and the registry drops it. Value is NaN until the first Set call, and
// Measure reports NaN once the meter has expired.
type Gauge struct {
	meterBase
	value AtomicDouble
}

func newGauge(id *Id, clock Clock) *Gauge {
	g := &Gauge{meterBase: newMeterBase(id, clock)}
	g.value.Set(nan)
	return g
}

// Set records v as the current value.
func (g *Gauge) Set(v float64) {
	now := g.clock.Now()
	g.touch(now)
	g.value.Set(v)
}

// Get returns the current value.
func (g *Gauge) Get() float64 {
	return g.value.Get()
}

func (g *Gauge) Measure(now int64) []Measurement {
	v := g.value.Get()
	if g.HasExpired(now) {
		v = nan
	}
	return []Measurement{{Id: g.id.withStatistic(StatGauge), Timestamp: now, Value: v}}
}
