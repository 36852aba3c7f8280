package hal

import "time"

// hostTime converts wall-clock progress into a tick stream. Ticks that
// cannot be delivered are dropped; the next delivered sequence number
// still accounts for them.
type hostTime struct {
	ch   chan uint64
	seq  uint64
	tick time.Duration
	now  func() time.Time

	last time.Time
	acc  time.Duration
}

func newHostTime(tick time.Duration) *hostTime {
	if tick <= 0 {
		tick = time.Millisecond
	}
	return &hostTime{ch: make(chan uint64, 1024), tick: tick, now: time.Now}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// step advances the stream by the wall time elapsed since the previous call.
// The first call emits a single tick.
func (t *hostTime) step() {
	now := t.now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(1)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / t.tick)
	if ticks == 0 {
		return
	}
	t.acc = t.acc % t.tick
	t.stepN(ticks)
}

func (t *hostTime) stepN(n uint64) {
	t.seq += n
	select {
	case t.ch <- t.seq:
	default:
	}
}

func (t *hostTime) close() { close(t.ch) }
