package workload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"ember/emberos/kernel"
	"ember/internal/ctxlog"
	"ember/internal/tracing"
)

// Result summarises a finished run.
type Result struct {
	Transcript *Transcript
	ExitCode   int
	Ticks      uint64
	Stats      kernel.Stats
}

// Runner executes a scenario on its own kernel.
type Runner struct {
	sc     *Scenario
	k      *kernel.Kernel
	locks  map[string]*kernel.Lock
	semas  map[string]*kernel.Semaphore
	tids   map[string]kernel.TID
	out    *Transcript
	ctx    context.Context
	logger *slog.Logger
}

// NewRunner creates a kernel with opts and the scenario's synchronisation
// objects. Nothing runs until Start or Run.
func NewRunner(sc *Scenario, opts kernel.Options) *Runner {
	k := kernel.New(opts)
	r := &Runner{
		sc:    sc,
		k:     k,
		locks: make(map[string]*kernel.Lock, len(sc.Locks)),
		semas: make(map[string]*kernel.Semaphore, len(sc.Semaphores)),
		tids:  make(map[string]kernel.TID, len(sc.Threads)),
		out:   &Transcript{},
	}
	for _, l := range sc.Locks {
		r.locks[l.Name] = k.NewLock(l.Name)
	}
	for _, s := range sc.Semaphores {
		r.semas[s.Name] = k.NewSemaphore(s.Name, s.Value)
	}
	return r
}

// Kernel returns the kernel the scenario runs on.
func (r *Runner) Kernel() *kernel.Kernel { return r.k }

// Transcript returns the live transcript.
func (r *Runner) Transcript() *Transcript { return r.out }

// Start boots the main thread. ctx must carry a logger; it also parents the
// per-thread spans.
func (r *Runner) Start(ctx context.Context) error {
	r.ctx = ctx
	r.logger = ctxlog.FromContext(ctx)
	main, _ := r.sc.Thread(MainThread)
	_, err := r.k.Boot(main.Name, main.priority(), r.body(main))
	return err
}

// Run boots the scenario and drives the clock deterministically until main
// exits or maxTicks ticks have passed.
func (r *Runner) Run(ctx context.Context, maxTicks uint64) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "workload.run")
	span.WithAttributes(map[string]string{
		"threads": strconv.Itoa(len(r.sc.Threads)),
		"mlfqs":   strconv.FormatBool(r.k.MLFQS()),
	})
	if err := r.Start(ctx); err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}
	err := r.k.Drive(ctx, maxTicks)
	res := r.Result()
	span.SetInt("ticks", int(res.Ticks))
	if errors.Is(err, kernel.ErrTickBudget) {
		err = fmt.Errorf("workload did not finish in %d ticks: %w", maxTicks, err)
	}
	tracing.EndSpan(span, err)
	return res, err
}

// Result collects the outcome so far.
func (r *Runner) Result() *Result {
	res := &Result{
		Transcript: r.out,
		Ticks:      r.k.Ticks(),
		Stats:      r.k.Stats(),
		ExitCode:   kernel.ExitKilled,
	}
	select {
	case <-r.k.Done():
		res.ExitCode = r.k.ExitCode()
	default:
	}
	return res
}

func (r *Runner) body(decl *ThreadDecl) func(*kernel.Context) {
	return func(c *kernel.Context) {
		_, span := tracing.StartSpan(r.ctx, "thread "+decl.Name)
		span.SetInt("tid", int(c.TID()))
		defer tracing.EndSpan(span, nil)

		r.note(c, decl, "start priority %d", c.Priority())
		for _, st := range decl.Steps {
			span.AddEvent(st.Op, map[string]string{"tick": strconv.FormatUint(c.Ticks(), 10)})
			r.step(c, decl, st)
		}
		r.note(c, decl, "return")
	}
}

func (r *Runner) note(c *kernel.Context, decl *ThreadDecl, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	tick := c.Ticks()
	r.out.Add(tick, decl.Name, text)
	r.logger.Debug("workload step", "tick", tick, "thread", decl.Name, "tid", c.TID(), "text", text)
}

func (r *Runner) step(c *kernel.Context, decl *ThreadDecl, st *Step) {
	switch st.Op {
	case OpCreate:
		target, _ := r.sc.Thread(st.Thread)
		tid, err := c.Create(target.Name, target.priority(), r.body(target))
		if err != nil {
			r.note(c, decl, "create %s failed: %v", target.Name, err)
			return
		}
		r.tids[target.Name] = tid
		r.note(c, decl, "created %s tid %d", target.Name, tid)
	case OpExec:
		r.exec(c, decl, st)
	case OpWait:
		tid, ok := r.tids[st.Thread]
		if !ok {
			tid = kernel.TIDError
		}
		code, err := c.Wait(tid)
		if err != nil {
			r.note(c, decl, "wait %s failed: %v", st.Thread, err)
			return
		}
		r.note(c, decl, "wait %s = %s", st.Thread, exitString(code))
	case OpAcquire:
		r.locks[st.Lock].Acquire(c)
		r.note(c, decl, "acquired %s (priority %d)", st.Lock, c.Priority())
	case OpTryAcquire:
		ok := r.locks[st.Lock].TryAcquire(c)
		r.note(c, decl, "try_acquire %s = %t", st.Lock, ok)
	case OpRelease:
		r.note(c, decl, "release %s", st.Lock)
		r.locks[st.Lock].Release(c)
	case OpDown:
		r.semas[st.Semaphore].Down(c)
		r.note(c, decl, "down %s", st.Semaphore)
	case OpUp:
		r.note(c, decl, "up %s", st.Semaphore)
		r.semas[st.Semaphore].Up(c)
	case OpSleep:
		c.Sleep(st.Ticks)
		r.note(c, decl, "woke after sleep %d", st.Ticks)
	case OpSleepUntil:
		c.SleepUntil(uint64(st.Tick))
		r.note(c, decl, "woke at %d", st.Tick)
	case OpCompute:
		c.Compute(st.Ticks)
		r.note(c, decl, "computed %d", st.Ticks)
	case OpYield:
		c.Yield()
		r.note(c, decl, "yielded")
	case OpSetPriority:
		r.note(c, decl, "set_priority %d", st.Value)
		c.SetPriority(st.Value)
	case OpSetNice:
		r.note(c, decl, "set_nice %d", st.Value)
		c.SetNice(st.Value)
	case OpReport:
		r.note(c, decl, "%s = %d", st.What, r.report(c, st.What))
	case OpWrite:
		c.AcquireFileLock()
		r.note(c, decl, "write %q", st.Text)
		c.ReleaseFileLock()
	case OpExit:
		r.note(c, decl, "exit %d", st.Code)
		c.Exit(st.Code)
	case OpKill:
		r.note(c, decl, "killed")
		c.Kill()
	default:
		r.note(c, decl, "unknown step %q, killed", st.Op)
		c.Kill()
	}
}

func (r *Runner) exec(c *kernel.Context, decl *ThreadDecl, st *Step) {
	target, _ := r.sc.Thread(st.Thread)
	spec := kernel.ProcessSpec{
		Name:     target.Name,
		Priority: target.priority(),
		PageDir:  "pd:" + target.Name,
		Load: func(*kernel.Context) error {
			if target.LoadFails {
				return fmt.Errorf("load %s: bad executable", target.Name)
			}
			return nil
		},
		Main: r.body(target),
	}
	tid, err := c.Exec(spec)
	if err != nil {
		r.note(c, decl, "exec %s failed: %v", target.Name, err)
		return
	}
	r.tids[target.Name] = tid
	r.note(c, decl, "exec %s tid %d", target.Name, tid)
}

func (r *Runner) report(c *kernel.Context, what string) int {
	switch what {
	case "priority":
		return c.Priority()
	case "base_priority":
		return c.BasePriority()
	case "nice":
		return c.Nice()
	case "recent_cpu":
		return c.RecentCPU()
	case "load_avg":
		return c.LoadAvg()
	case "ticks":
		return int(c.Ticks())
	default:
		return 0
	}
}

func exitString(code int) string {
	if code == kernel.ExitKilled {
		return "killed"
	}
	return strconv.Itoa(code)
}
