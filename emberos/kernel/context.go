package kernel

import "runtime"

// Context provides thread-local access to kernel operations. A thread's
// context is valid only on its own goroutine while it runs. The context
// returned by Kernel.Interrupt belongs to no thread and cannot block.
type Context struct {
	k *Kernel
	t *Thread
}

// enter disables interrupts and honours a pending preemption request.
func (c *Context) enter() {
	c.k.mu.Lock()
	if c.t == nil {
		return
	}
	if c.k.current != c.t {
		c.k.fatalf("thread %d used its context while not running", c.t.tid)
	}
	c.k.preempt()
}

func (c *Context) leave() {
	if c.t == nil {
		c.k.interruptReturn()
	}
	c.k.mu.Unlock()
}

func (c *Context) mustThread(op string) {
	if c.t == nil {
		c.k.fatalf("%s: not allowed in interrupt context", op)
	}
}

// preemptOrDefer yields to an outranking ready thread, or asks for a yield on
// interrupt return when called from an interrupt handler.
func (c *Context) preemptOrDefer() {
	if c.t != nil {
		c.k.yieldIfOutranked()
	}
}

// Kernel returns the kernel this context belongs to.
func (c *Context) Kernel() *Kernel { return c.k }

// InInterrupt reports whether this is an interrupt context.
func (c *Context) InInterrupt() bool { return c.t == nil }

// Thread returns the calling thread, nil in interrupt context.
func (c *Context) Thread() *Thread { return c.t }

// TID returns the calling thread's id.
func (c *Context) TID() TID {
	if c.t == nil {
		return TIDError
	}
	return c.t.tid
}

// Name returns the calling thread's name.
func (c *Context) Name() string {
	if c.t == nil {
		return ""
	}
	return c.t.name
}

// Ticks returns the number of timer interrupts since boot.
func (c *Context) Ticks() uint64 {
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	return c.k.ticks
}

// Yield gives up the CPU. The caller stays ready and runs again when it is
// the highest-priority ready thread.
func (c *Context) Yield() {
	c.enter()
	c.mustThread("yield")
	c.k.yieldCurrent()
	c.leave()
}

// Block parks the calling thread until Kernel.Unblock. The caller must have
// published itself somewhere the waker can find it first.
func (c *Context) Block() {
	c.enter()
	c.mustThread("block")
	c.k.blockCurrent()
	c.leave()
}

// Sleep blocks for at least n timer ticks. n <= 0 returns immediately.
func (c *Context) Sleep(n int) {
	if n <= 0 {
		return
	}
	c.enter()
	c.mustThread("sleep")
	c.k.sleepUntil(c.t, c.k.ticks+uint64(n))
	c.leave()
}

// SleepUntil blocks until the tick count reaches tick. A tick already in the
// past returns immediately.
func (c *Context) SleepUntil(tick uint64) {
	c.enter()
	c.mustThread("sleep")
	c.k.sleepUntil(c.t, tick)
	c.leave()
}

// Compute keeps the CPU busy for n timer ticks of the calling thread's own
// running time. The thread stays preemptible throughout.
func (c *Context) Compute(n int) {
	c.enter()
	c.mustThread("compute")
	t := c.t
	t.burst = n
	for t.burst > 0 {
		c.k.halt(t)
		c.k.preempt()
	}
	c.leave()
}

// Priority returns the calling thread's effective priority.
func (c *Context) Priority() int {
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	if c.t == nil {
		return PriMin
	}
	return c.t.priority
}

// BasePriority returns the priority last set explicitly.
func (c *Context) BasePriority() int {
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	if c.t == nil {
		return PriMin
	}
	return c.t.originPriority
}

// SetPriority sets the calling thread's base priority and yields if it is no
// longer the highest-priority thread. Ignored under MLFQS.
func (c *Context) SetPriority(priority int) {
	c.enter()
	c.mustThread("set priority")
	c.k.setPriority(c.t, priority)
	c.k.yieldIfOutranked()
	c.leave()
}

// SetThreadPriority sets another thread's base priority.
func (c *Context) SetThreadPriority(t *Thread, priority int) {
	c.enter()
	if t.status == StatusDying {
		c.k.fatalf("set priority: thread %d is dying", t.tid)
	}
	c.k.setPriority(t, priority)
	c.preemptOrDefer()
	c.leave()
}

// Nice returns the calling thread's niceness.
func (c *Context) Nice() int {
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	if c.t == nil {
		return NiceDefault
	}
	return c.t.nice
}

// SetNice sets the calling thread's niceness, clamped to [NiceMin, NiceMax],
// recomputes its priority and yields if it is outranked.
func (c *Context) SetNice(nice int) {
	c.enter()
	c.mustThread("set nice")
	c.k.setNice(c.t, nice)
	c.k.yieldIfOutranked()
	c.leave()
}

// RecentCPU returns the calling thread's recent CPU estimate times 100.
func (c *Context) RecentCPU() int {
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	if c.t == nil {
		return 0
	}
	return c.t.recentCPU.Scaled()
}

// LoadAvg returns the system load average times 100.
func (c *Context) LoadAvg() int {
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	return c.k.loadAvg.Scaled()
}

// AcquireFileLock takes the global file-system lock.
func (c *Context) AcquireFileLock() { c.k.fileLock.Acquire(c) }

// ReleaseFileLock releases the global file-system lock.
func (c *Context) ReleaseFileLock() { c.k.fileLock.Release(c) }

// Exit terminates the calling thread with code. Deferred calls of the thread
// body run first. Exit does not return.
func (c *Context) Exit(code int) {
	c.enter()
	c.mustThread("exit")
	c.leave()
	if code == ExitKilled {
		code++
	}
	c.t.exitCode = code
	runtime.Goexit()
}

// Kill terminates the calling thread abnormally.
func (c *Context) Kill() {
	c.enter()
	c.mustThread("kill")
	c.leave()
	c.t.exitCode = ExitKilled
	runtime.Goexit()
}
