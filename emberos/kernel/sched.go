package kernel

// run is the body of every thread goroutine.
func (k *Kernel) run(t *Thread) {
	defer k.exit(t)
	<-t.wake
	k.tail()
	k.mu.Unlock()
	t.entry(&Context{k: k, t: t})
	t.exitCode = 0
}

// exit tears down the running thread and switches away for good. A panic
// escaping the thread body terminates the thread as killed.
func (k *Kernel) exit(t *Thread) {
	if r := recover(); r != nil {
		t.exitCode = ExitKilled
	}
	if t.files.Len() > 0 {
		c := &Context{k: k, t: t}
		if !k.fileLock.HeldBy(c) {
			k.fileLock.Acquire(c)
		}
		t.files.closeAll()
	}

	k.mu.Lock()
	if k.current != t {
		k.fatalf("exit: thread %d is not running", t.tid)
	}
	k.releaseLocks(t)
	k.processExit(t)
	t.status = StatusDying
	k.record(EventExit, t.tid, 0, t.exitCode)
	if t == k.initial {
		k.initialExit = t.exitCode
		close(k.done)
		k.quiet.Broadcast()
	}
	k.schedule()
}

// schedule switches to the highest-priority ready thread, or to idle when
// none is ready. The caller holds mu and has already moved the current
// thread out of the running state. schedule returns with mu held once the
// calling thread is chosen again; for a dying thread it returns immediately
// and the goroutine must end without touching kernel state.
func (k *Kernel) schedule() {
	cur := k.current
	next := k.nextThreadToRun()
	if next != cur {
		dying := cur.status == StatusDying
		k.prev = cur
		k.current = next
		k.awaitingIRQ = false
		k.record(EventSwitch, cur.tid, next.tid, next.priority)
		next.wake <- struct{}{}
		if dying {
			return
		}
		<-cur.wake
	}
	k.tail()
}

// tail completes a switch on behalf of the incoming thread.
func (k *Kernel) tail() {
	cur := k.current
	cur.status = StatusRunning
	k.sliceTicks = 0
	k.yieldOnReturn = false
	if k.opts.Activate != nil {
		k.opts.Activate(cur.pageDir)
	}
	if prev := k.prev; prev != nil && prev != cur && prev.status == StatusDying {
		k.reap(prev)
	}
	k.prev = nil
}

func (k *Kernel) reap(t *Thread) {
	delete(k.all, t.tid)
	t.children = nil
	t.self = nil
	k.record(EventReap, t.tid, 0, t.exitCode)
}

func (k *Kernel) nextThreadToRun() *Thread {
	if t := k.ready.popMax(); t != nil {
		return t
	}
	return k.idle
}

// yieldCurrent puts the running thread back on the ready queue and
// reschedules. The idle thread is never queued.
func (k *Kernel) yieldCurrent() {
	cur := k.current
	if cur != k.idle {
		k.enqueue(&k.ready, cur)
	}
	cur.status = StatusReady
	k.schedule()
}

// blockCurrent parks the running thread. It must already be linked into
// whatever structure will wake it.
func (k *Kernel) blockCurrent() {
	cur := k.current
	if cur == k.idle {
		k.fatalf("idle thread cannot block")
	}
	cur.status = StatusBlocked
	k.record(EventBlock, cur.tid, 0, cur.priority)
	k.schedule()
}

// unblock makes a blocked thread ready. It does not preempt.
func (k *Kernel) unblock(t *Thread) {
	if t.status != StatusBlocked {
		k.fatalf("unblock: thread %d is %s, not blocked", t.tid, t.status)
	}
	k.enqueue(&k.ready, t)
	t.status = StatusReady
	k.record(EventUnblock, t.tid, 0, t.priority)
}

// outranked reports whether a ready thread should take the CPU from t.
func (k *Kernel) outranked(t *Thread) bool {
	if k.ready.len() == 0 {
		return false
	}
	return t == k.idle || k.ready.maxPriority() > t.priority
}

// yieldIfOutranked is the thread-context preemption point.
func (k *Kernel) yieldIfOutranked() {
	if k.outranked(k.current) {
		k.yieldCurrent()
	}
}

// preempt honours a yield requested by an interrupt handler.
func (k *Kernel) preempt() {
	if k.yieldOnReturn {
		k.yieldOnReturn = false
		k.yieldCurrent()
	}
}

// interruptReturn runs at the end of every interrupt handler. A preemption
// is requested when a ready thread now outranks the running one, and a CPU
// waiting for an interrupt is resumed.
func (k *Kernel) interruptReturn() {
	cur := k.current
	if cur == nil {
		return
	}
	if k.outranked(cur) {
		k.yieldOnReturn = true
	}
	if !k.awaitingIRQ {
		return
	}
	if cur == k.idle && k.ready.len() == 0 {
		return
	}
	k.awaitingIRQ = false
	select {
	case cur.irq <- struct{}{}:
	default:
	}
}

// halt parks the running thread until the next interrupt. mu is released
// while halted and held again on return.
func (k *Kernel) halt(t *Thread) {
	select {
	case <-t.irq:
	default:
	}
	k.awaitingIRQ = true
	k.quiet.Broadcast()
	k.mu.Unlock()
	<-t.irq
	k.mu.Lock()
}

func (k *Kernel) idleLoop() {
	idle := k.idle
	<-idle.wake
	k.tail()
	for {
		k.halt(idle)
		idle.status = StatusBlocked
		k.schedule()
	}
}
