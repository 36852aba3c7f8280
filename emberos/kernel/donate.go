package kernel

// refreshPriority recomputes t's effective priority from its base priority
// and the waiters of every lock it holds.
func (k *Kernel) refreshPriority(t *Thread) {
	if k.opts.MLFQS {
		return
	}
	p := t.originPriority
	for _, l := range t.locks {
		if w := l.waiters.maxPriority(); w > p {
			p = w
		}
	}
	t.priority = p
}

// donate propagates t's priority along the chain of lock holders it waits
// behind. The walk stops at the first holder whose priority does not change.
// A chain longer than the number of threads can only be a cycle.
func (k *Kernel) donate(t *Thread) {
	if k.opts.MLFQS {
		return
	}
	for depth := 0; t.waitingLock != nil; depth++ {
		l := t.waitingLock
		if depth > len(k.all) {
			k.fatalf("priority donation cycle through lock %q", l.name)
		}
		h := l.holder
		if h == nil {
			return
		}
		before := h.priority
		k.refreshPriority(h)
		if h.priority == before {
			return
		}
		k.record(EventDonate, t.tid, h.tid, h.priority)
		t = h
	}
}

// setPriority changes t's base priority and pushes the new effective
// priority down any donation chain t sits in.
func (k *Kernel) setPriority(t *Thread, priority int) {
	if k.opts.MLFQS {
		return
	}
	t.originPriority = clamp(priority, PriMin, PriMax)
	k.refreshPriority(t)
	k.record(EventPriority, t.tid, 0, t.priority)
	k.donate(t)
}
