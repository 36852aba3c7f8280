package kernel

import (
	"cmp"
	"slices"
)

// Tick delivers one timer interrupt and returns the new tick count.
func (k *Kernel) Tick() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tick()
	k.interruptReturn()
	return k.ticks
}

// TickTo delivers timer interrupts until the tick count reaches seq.
func (k *Kernel) TickTo(seq uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.ticks >= seq {
		return
	}
	for k.ticks < seq {
		k.tick()
	}
	k.interruptReturn()
}

func (k *Kernel) tick() {
	k.ticks++
	cur := k.current
	switch {
	case cur == nil:
		return
	case cur == k.idle:
		k.stats.IdleTicks++
	case cur.pageDir != nil:
		k.stats.UserTicks++
	default:
		k.stats.KernelTicks++
	}
	if cur != k.idle && cur.burst > 0 {
		cur.burst--
	}

	if k.opts.MLFQS {
		k.mlfqsTick(cur)
	}
	k.wakeSleepers()

	if cur != k.idle {
		k.sliceTicks++
		if k.sliceTicks >= k.opts.TimeSlice {
			k.yieldOnReturn = true
		}
	}
}

// wakeSleepers unblocks every sleeper whose wake tick has arrived, highest
// priority first and in sleep order among equals.
func (k *Kernel) wakeSleepers() {
	var due []*Thread
	keep := k.sleepers.items[:0]
	for _, t := range k.sleepers.items {
		if t.wakeTick <= k.ticks {
			due = append(due, t)
		} else {
			keep = append(keep, t)
		}
	}
	clear(k.sleepers.items[len(keep):])
	k.sleepers.items = keep
	if len(due) == 0 {
		return
	}
	slices.SortStableFunc(due, func(a, b *Thread) int {
		if a.priority != b.priority {
			return cmp.Compare(b.priority, a.priority)
		}
		return cmp.Compare(a.seq, b.seq)
	})
	for _, t := range due {
		t.queue = queueNone
		k.record(EventWake, t.tid, 0, int(t.wakeTick))
		k.unblock(t)
	}
}

func (k *Kernel) sleepUntil(t *Thread, tick uint64) {
	if tick <= k.ticks {
		return
	}
	t.wakeTick = tick
	k.enqueue(&k.sleepers, t)
	k.blockCurrent()
}
