package kernel

// Semaphore is a counting semaphore whose waiters are woken in priority
// order.
type Semaphore struct {
	k       *Kernel
	name    string
	value   int
	waiters threadQueue
}

// NewSemaphore creates a semaphore with an initial value.
func (k *Kernel) NewSemaphore(name string, value int) *Semaphore {
	return &Semaphore{k: k, name: name, value: value, waiters: threadQueue{kind: queueWait}}
}

// Name returns the semaphore name.
func (s *Semaphore) Name() string { return s.name }

// Down waits for the value to become positive, then decrements it.
func (s *Semaphore) Down(c *Context) {
	c.enter()
	c.mustThread("sema down")
	s.down(c.t)
	c.leave()
}

// TryDown decrements the value if it is positive. It never blocks and is
// allowed in interrupt context.
func (s *Semaphore) TryDown(c *Context) bool {
	c.enter()
	ok := s.value > 0
	if ok {
		s.value--
	}
	c.leave()
	return ok
}

// Up increments the value and wakes the highest-priority waiter. In thread
// context the caller yields at once if the woken thread outranks it; in
// interrupt context the yield happens on interrupt return.
func (s *Semaphore) Up(c *Context) {
	c.enter()
	s.up()
	c.preemptOrDefer()
	c.leave()
}

// Value returns the current count.
func (s *Semaphore) Value() int {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.value
}

func (s *Semaphore) down(t *Thread) {
	for s.value == 0 {
		s.k.enqueue(&s.waiters, t)
		s.k.blockCurrent()
	}
	s.value--
}

func (s *Semaphore) up() {
	if t := s.waiters.popMax(); t != nil {
		s.k.unblock(t)
	}
	s.value++
}

// Lock is a non-recursive mutual-exclusion lock owned by one thread. Under
// the priority scheduler its waiters donate their priority to the holder.
type Lock struct {
	k       *Kernel
	name    string
	holder  *Thread
	waiters threadQueue
}

// NewLock creates an unheld lock.
func (k *Kernel) NewLock(name string) *Lock {
	return &Lock{k: k, name: name, waiters: threadQueue{kind: queueWait}}
}

// Name returns the lock name.
func (l *Lock) Name() string { return l.name }

// Acquire waits until the lock is free and takes it. Acquiring a lock the
// caller already holds is fatal.
func (l *Lock) Acquire(c *Context) {
	c.enter()
	c.mustThread("lock acquire")
	l.acquire(c.t)
	c.leave()
}

// TryAcquire takes the lock if it is free. It never blocks or donates.
func (l *Lock) TryAcquire(c *Context) bool {
	c.enter()
	c.mustThread("lock try acquire")
	if l.holder == c.t {
		l.k.fatalf("lock %q: recursive acquire by thread %d", l.name, c.t.tid)
	}
	ok := l.holder == nil
	if ok {
		l.grant(c.t)
	}
	c.leave()
	return ok
}

// Release hands the lock to its highest-priority waiter, if any, and yields
// when that waiter outranks the caller. Releasing a lock the caller does not
// hold is fatal.
func (l *Lock) Release(c *Context) {
	c.enter()
	c.mustThread("lock release")
	l.release(c.t)
	l.k.yieldIfOutranked()
	c.leave()
}

// HeldBy reports whether the calling thread holds the lock.
func (l *Lock) HeldBy(c *Context) bool {
	l.k.mu.Lock()
	defer l.k.mu.Unlock()
	return c.t != nil && l.holder == c.t
}

// Holder returns the holding thread's id, or TIDError when the lock is free.
func (l *Lock) Holder() TID {
	l.k.mu.Lock()
	defer l.k.mu.Unlock()
	if l.holder == nil {
		return TIDError
	}
	return l.holder.tid
}

func (l *Lock) acquire(t *Thread) {
	k := l.k
	if l.holder == t {
		k.fatalf("lock %q: recursive acquire by thread %d", l.name, t.tid)
	}
	if l.holder == nil {
		l.grant(t)
		return
	}
	t.waitingLock = l
	k.enqueue(&l.waiters, t)
	k.donate(t)
	k.blockCurrent()
	if l.holder != t {
		k.fatalf("lock %q: thread %d woke without ownership", l.name, t.tid)
	}
}

func (l *Lock) grant(t *Thread) {
	l.holder = t
	t.locks = append(t.locks, l)
}

func (l *Lock) release(t *Thread) {
	k := l.k
	if l.holder != t {
		k.fatalf("lock %q: released by thread %d which does not hold it", l.name, t.tid)
	}
	for i, x := range t.locks {
		if x == l {
			t.locks = append(t.locks[:i], t.locks[i+1:]...)
			break
		}
	}
	l.holder = nil
	if w := l.waiters.popMax(); w != nil {
		w.waitingLock = nil
		l.grant(w)
		k.refreshPriority(w)
		k.unblock(w)
	}
	k.refreshPriority(t)
}

// releaseLocks hands every lock t still holds, the file lock included, to
// its highest-priority waiter.
func (k *Kernel) releaseLocks(t *Thread) {
	for len(t.locks) > 0 {
		t.locks[len(t.locks)-1].release(t)
	}
}

// Cond is a condition variable used together with a Lock. Signal wakes the
// waiter with the highest priority.
type Cond struct {
	k       *Kernel
	name    string
	waiters []*condWaiter
}

type condWaiter struct {
	t    *Thread
	sema *Semaphore
}

// NewCond creates a condition variable.
func (k *Kernel) NewCond(name string) *Cond {
	return &Cond{k: k, name: name}
}

// Wait atomically releases l, waits for a signal and reacquires l.
func (cv *Cond) Wait(c *Context, l *Lock) {
	c.enter()
	c.mustThread("cond wait")
	cv.mustHold(c, l)
	w := &condWaiter{t: c.t, sema: cv.k.NewSemaphore(cv.name, 0)}
	cv.waiters = append(cv.waiters, w)
	l.release(c.t)
	w.sema.down(c.t)
	l.acquire(c.t)
	c.leave()
}

// Signal wakes the highest-priority waiter, if any.
func (cv *Cond) Signal(c *Context, l *Lock) {
	c.enter()
	c.mustThread("cond signal")
	cv.mustHold(c, l)
	cv.signal()
	cv.k.yieldIfOutranked()
	c.leave()
}

// Broadcast wakes every waiter.
func (cv *Cond) Broadcast(c *Context, l *Lock) {
	c.enter()
	c.mustThread("cond broadcast")
	cv.mustHold(c, l)
	for len(cv.waiters) > 0 {
		cv.signal()
	}
	cv.k.yieldIfOutranked()
	c.leave()
}

func (cv *Cond) mustHold(c *Context, l *Lock) {
	if l.holder != c.t {
		cv.k.fatalf("cond %q: lock %q not held by thread %d", cv.name, l.name, c.t.tid)
	}
}

func (cv *Cond) signal() {
	best := -1
	for i, w := range cv.waiters {
		if best < 0 || w.t.priority > cv.waiters[best].t.priority {
			best = i
		}
	}
	if best < 0 {
		return
	}
	w := cv.waiters[best]
	cv.waiters = append(cv.waiters[:best], cv.waiters[best+1:]...)
	w.sema.up()
}
