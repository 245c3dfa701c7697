package spectator

import "sync/atomic"

// expireAfterMillis is how long a meter may go without being written to
// before the registry's expiration sweep drops it. Matches the
// inactivity window Atlas-style registries use by default.
const expireAfterMillis int64 = 15 * 60 * 1000

// meterBase is embedded by every concrete meter type. It tracks the
// clock used to timestamp writes and the last-write time used for
// expiration, so each meter type only has to implement its own
// accumulation and Measure logic.
type meterBase struct {
	id         *Id
	clock      Clock
	lastAccess atomic.Int64
}

func newMeterBase(id *Id, clock Clock) meterBase {
	m := meterBase{id: id, clock: clock}
	m.lastAccess.Store(clock.Now())
	return m
}

func (m *meterBase) MeterId() *Id {
	return m.id
}

func (m *meterBase) touch(now int64) {
	m.lastAccess.Store(now)
}

func (m *meterBase) HasExpired(now int64) bool {
	return now-m.lastAccess.Load() > expireAfterMillis
}
