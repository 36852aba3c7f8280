package kernel

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"ember/emberos/fixed"
)

// Thread priorities.
const (
	PriMin     = 0
	PriDefault = 31
	PriMax     = 63
)

// Niceness bounds for the feedback scheduler.
const (
	NiceMin     = -20
	NiceDefault = 0
	NiceMax     = 20
)

// ExitKilled is the exit code of a thread that terminated abnormally.
// Voluntary exit codes never take this value.
const ExitKilled = math.MinInt32

const (
	defaultTimeSlice  = 4
	defaultTimerFreq  = 100
	defaultMaxThreads = 64
	defaultEventSlots = 256

	// MLFQS priorities are recomputed every recalcTicks timer ticks.
	recalcTicks = 4

	maxNameLen = 15
)

var (
	ErrNoThreadSlots = errors.New("kernel: no free thread slots")
	ErrNotChild      = errors.New("kernel: not a waitable child")
	ErrLoadFailed    = errors.New("kernel: process failed to load")
	ErrBooted        = errors.New("kernel: already booted")
	ErrTickBudget    = errors.New("kernel: tick budget exhausted")
	ErrBadFD         = errors.New("kernel: bad file descriptor")
)

// PageDir is the opaque address-space handle owned by the VM layer.
type PageDir any

// Options selects the scheduling policy and sizes kernel tables. It is fixed
// when the kernel is created.
type Options struct {
	// MLFQS selects the multi-level feedback scheduler instead of strict
	// priority scheduling with donation.
	MLFQS bool
	// TimeSlice is the number of ticks a thread runs before it is preempted.
	TimeSlice int
	// TimerFreq is the number of ticks per second.
	TimerFreq int
	// MaxThreads bounds the number of live threads, idle excluded.
	MaxThreads int
	// EventSlots sizes the event ring. Negative disables recording.
	EventSlots int
	// Activate is called with the incoming thread's page directory on every
	// switch. It runs with the kernel locked and must not block.
	Activate func(PageDir)
	// PanicHandler is invoked once on the first kernel panic.
	PanicHandler func(PanicInfo)
}

func (o Options) withDefaults() Options {
	if o.TimeSlice <= 0 {
		o.TimeSlice = defaultTimeSlice
	}
	if o.TimerFreq <= 0 {
		o.TimerFreq = defaultTimerFreq
	}
	if o.MaxThreads <= 0 {
		o.MaxThreads = defaultMaxThreads
	}
	if o.EventSlots == 0 {
		o.EventSlots = defaultEventSlots
	}
	return o
}

// Stats counts timer ticks by what the CPU was doing.
type Stats struct {
	IdleTicks   uint64
	KernelTicks uint64
	UserTicks   uint64
}

// Kernel owns every thread and the single run queue.
//
// mu is the interrupt-disable flag of the machine: all scheduler state is
// touched only with mu held, and a thread that switches away hands mu to the
// thread it switches to instead of unlocking it.
type Kernel struct {
	mu    sync.Mutex
	quiet *sync.Cond

	opts Options

	all      map[TID]*Thread
	ready    threadQueue
	sleepers threadQueue
	current  *Thread
	idle     *Thread
	initial  *Thread
	prev     *Thread

	nextTID TID
	seq     uint64

	ticks         uint64
	sliceTicks    int
	yieldOnReturn bool
	awaitingIRQ   bool

	loadAvg fixed.Fixed
	stats   Stats

	fileLock *Lock
	events   eventRing

	booted      bool
	done        chan struct{}
	initialExit int

	panicOnce sync.Once
	panicked  atomic.Bool
}

// New creates a kernel. Nothing runs until Boot.
func New(opts Options) *Kernel {
	k := &Kernel{
		opts:    opts.withDefaults(),
		all:     make(map[TID]*Thread),
		ready:   threadQueue{kind: queueReady},
		nextTID: 1,
		done:    make(chan struct{}),
	}
	k.sleepers = threadQueue{kind: queueSleep}
	k.quiet = sync.NewCond(&k.mu)
	k.fileLock = k.NewLock("filesys")
	if k.opts.EventSlots > 0 {
		k.events.slots = make([]Event, k.opts.EventSlots)
	}
	return k
}

// MLFQS reports whether the feedback scheduler is active.
func (k *Kernel) MLFQS() bool { return k.opts.MLFQS }

// Boot turns entry into the initial thread and starts scheduling. The
// initial thread has no parent; Done is closed when it exits.
func (k *Kernel) Boot(name string, priority int, entry func(*Context)) (TID, error) {
	k.mu.Lock()
	if k.booted {
		k.mu.Unlock()
		return TIDError, ErrBooted
	}
	k.booted = true

	t := k.newThread(name, priority)
	t.entry = entry
	if k.opts.MLFQS {
		k.mlfqsPriority(t)
	}
	k.all[t.tid] = t
	k.initial = t

	k.idle = k.newThread("idle", PriMin)
	k.idle.status = StatusBlocked

	go k.run(t)
	go k.idleLoop()

	k.record(EventCreate, t.tid, 0, t.priority)
	k.current = t
	t.wake <- struct{}{}
	// mu now belongs to the initial thread.
	return t.tid, nil
}

// Done is closed when the initial thread exits.
func (k *Kernel) Done() <-chan struct{} { return k.done }

// ExitCode returns the initial thread's exit code once Done is closed.
func (k *Kernel) ExitCode() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.initialExit
}

// Settle blocks until the CPU waits for the next interrupt: either the idle
// thread has halted or the running thread is in the middle of a compute
// burst. Between Settle and the next Tick no thread makes progress, which
// makes Settle/Tick pairs a deterministic clock.
func (k *Kernel) Settle() {
	k.mu.Lock()
	for !k.awaitingIRQ {
		k.quiet.Wait()
	}
	k.mu.Unlock()
}

// Drive runs the deterministic clock until the initial thread exits, ctx is
// cancelled or maxTicks timer interrupts were delivered (0 means no limit).
func (k *Kernel) Drive(ctx context.Context, maxTicks uint64) error {
	for n := uint64(0); maxTicks == 0 || n < maxTicks; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-k.done:
			return nil
		default:
		}
		k.Settle()
		select {
		case <-k.done:
			return nil
		default:
		}
		k.Tick()
	}
	select {
	case <-k.done:
		return nil
	default:
		return ErrTickBudget
	}
}

// Ticks returns the number of timer interrupts since boot.
func (k *Kernel) Ticks() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ticks
}

// Stats returns tick accounting.
func (k *Kernel) Stats() Stats {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stats
}

// LoadAvg returns the system load average times 100, rounded.
func (k *Kernel) LoadAvg() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.loadAvg.Scaled()
}

// Interrupt returns a context for code running in interrupt context. It may
// wake threads but never block.
func (k *Kernel) Interrupt() *Context { return &Context{k: k} }

// Unblock moves a thread blocked through Context.Block back to the ready
// queue. It never switches threads itself.
func (k *Kernel) Unblock(t *Thread) {
	k.mu.Lock()
	if t.queue != queueNone {
		k.fatalf("unblock: thread %d is linked into the %s queue", t.tid, t.queue)
	}
	k.unblock(t)
	k.interruptReturn()
	k.mu.Unlock()
}

// Snapshot describes every live thread, ordered by TID.
func (k *Kernel) Snapshot() []ThreadInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]ThreadInfo, 0, len(k.all))
	for _, t := range k.all {
		out = append(out, t.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TID < out[j].TID })
	return out
}

// Lookup returns the live thread with the given id.
func (k *Kernel) Lookup(tid TID) (*Thread, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.all[tid]
	return t, ok
}

func (k *Kernel) nextSeq() uint64 {
	k.seq++
	return k.seq
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
