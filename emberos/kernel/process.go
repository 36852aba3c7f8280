package kernel

import "fmt"

// child is the record a parent keeps for each thread it created. The parent
// owns the record; the child only holds a back-reference so it can report
// its exit code and signal exited. Once the parent waits or dies the record
// is dropped from the parent and the child's writes land in an unreachable
// record.
type child struct {
	tid      TID
	thread   *Thread
	exitCode int
	exited   *Semaphore
	loaded   bool
}

// ProcessSpec describes a user process for Exec.
type ProcessSpec struct {
	Name     string
	Priority int
	// PageDir is activated whenever the process runs.
	PageDir PageDir
	// Load runs in the new thread before Exec returns to the parent. A
	// non-nil error kills the child and fails the Exec.
	Load func(*Context) error
	// Main is the process body.
	Main func(*Context)
}

// Create starts a kernel thread as a child of the caller. The new thread
// runs at once if it outranks the caller.
func (c *Context) Create(name string, priority int, entry func(*Context)) (TID, error) {
	c.enter()
	c.mustThread("create")
	t, err := c.k.spawn(c.t, name, priority, nil, entry)
	if err != nil {
		c.leave()
		return TIDError, err
	}
	c.k.yieldIfOutranked()
	c.leave()
	return t.tid, nil
}

// Exec starts a user process and blocks until it has reported whether its
// program loaded. On failure the child is gone and ErrLoadFailed is
// returned.
func (c *Context) Exec(spec ProcessSpec) (TID, error) {
	c.enter()
	c.mustThread("exec")
	k := c.k
	parent := c.t
	entry := func(cc *Context) {
		reported := false
		report := func(ok bool) {
			cc.t.self.loaded = ok
			parent.handshake.up()
			reported = true
		}
		// A loader that exits or kills its thread still fails the exec.
		defer func() {
			if !reported {
				k.mu.Lock()
				report(false)
				k.mu.Unlock()
			}
		}()
		err := load(cc, spec.Load)
		cc.enter()
		report(err == nil)
		k.yieldIfOutranked()
		cc.leave()
		if err != nil {
			cc.Kill()
		}
		if spec.Main != nil {
			spec.Main(cc)
		}
	}
	t, err := k.spawn(parent, spec.Name, spec.Priority, spec.PageDir, entry)
	if err != nil {
		c.leave()
		return TIDError, err
	}
	desc := t.self
	parent.handshake.down(parent)
	if !desc.loaded {
		parent.dropChild(desc)
		c.leave()
		return TIDError, ErrLoadFailed
	}
	c.leave()
	return t.tid, nil
}

// Wait blocks until the child tid exits and returns its exit code. A child
// can be waited for once; any other tid yields ErrNotChild.
func (c *Context) Wait(tid TID) (int, error) {
	c.enter()
	c.mustThread("wait")
	cur := c.t
	var desc *child
	for _, d := range cur.children {
		if d.tid == tid {
			desc = d
			break
		}
	}
	if desc == nil {
		c.leave()
		return ExitKilled, ErrNotChild
	}
	cur.dropChild(desc)
	desc.exited.down(cur)
	code := desc.exitCode
	c.leave()
	return code, nil
}

// Children returns the ids of the caller's unwaited children.
func (c *Context) Children() []TID {
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	if c.t == nil {
		return nil
	}
	out := make([]TID, 0, len(c.t.children))
	for _, d := range c.t.children {
		out = append(out, d.tid)
	}
	return out
}

func (k *Kernel) spawn(parent *Thread, name string, priority int, pd PageDir, entry func(*Context)) (*Thread, error) {
	if len(k.all) >= k.opts.MaxThreads {
		return nil, ErrNoThreadSlots
	}
	t := k.newThread(name, priority)
	t.entry = entry
	t.pageDir = pd
	if parent != nil {
		t.parent = parent.tid
		desc := &child{
			tid:      t.tid,
			thread:   t,
			exitCode: ExitKilled,
			exited:   k.NewSemaphore("exited", 0),
		}
		parent.children = append(parent.children, desc)
		t.self = desc
		t.nice = parent.nice
		t.recentCPU = parent.recentCPU
	}
	if k.opts.MLFQS {
		k.mlfqsPriority(t)
	}
	k.all[t.tid] = t
	go k.run(t)
	k.record(EventCreate, t.tid, t.parent, t.priority)
	k.unblock(t)
	return t, nil
}

// load runs a process loader, turning a panic into a load failure.
func load(c *Context, fn func(*Context) error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("load panicked: %v", r)
		}
	}()
	return fn(c)
}

func (t *Thread) dropChild(desc *child) {
	for i, d := range t.children {
		if d == desc {
			t.children = append(t.children[:i], t.children[i+1:]...)
			return
		}
	}
}

// processExit reports t's exit code to its parent, if the parent still
// cares, and abandons t's own children.
func (k *Kernel) processExit(t *Thread) {
	if desc := t.self; desc != nil {
		desc.exitCode = t.exitCode
		desc.thread = nil
		desc.exited.up()
		t.self = nil
	}
	for _, d := range t.children {
		if d.thread != nil {
			d.thread.self = nil
		}
	}
	t.children = nil
}
