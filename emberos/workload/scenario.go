// Package workload runs scripted thread workloads on an Ember kernel.
//
// A workload is an HCL file that declares locks, semaphores and threads.
// Each thread is a list of steps executed in order; the thread named "main"
// is booted as the initial thread and creates the others.
package workload

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/viant/afs"
	"github.com/zclconf/go-cty/cty"

	"ember/emberos/kernel"
)

// MainThread is the thread booted as the initial thread.
const MainThread = "main"

var (
	ErrNoMain           = errors.New("workload: no main thread")
	ErrDuplicate        = errors.New("workload: duplicate declaration")
	ErrUnknownThread    = errors.New("workload: unknown thread")
	ErrUnknownLock      = errors.New("workload: unknown lock")
	ErrUnknownSemaphore = errors.New("workload: unknown semaphore")
	ErrBadReport        = errors.New("workload: unknown report value")
)

// Scenario is a decoded workload file.
type Scenario struct {
	Locks      []*LockDecl      `hcl:"lock,block"`
	Semaphores []*SemaphoreDecl `hcl:"semaphore,block"`
	Threads    []*ThreadDecl    `hcl:"thread,block"`
}

// LockDecl declares a named lock.
type LockDecl struct {
	Name string `hcl:"name,label"`
}

// SemaphoreDecl declares a named semaphore.
type SemaphoreDecl struct {
	Name  string `hcl:"name,label"`
	Value int    `hcl:"value,optional"`
}

// ThreadDecl declares a thread body.
type ThreadDecl struct {
	Name     string `hcl:"name,label"`
	Priority *int   `hcl:"priority,optional"`
	// LoadFails makes exec of this thread fail its load handshake.
	LoadFails bool    `hcl:"load_fails,optional"`
	Steps     []*Step `hcl:"step,block"`
}

// Step is one action of a thread. Which attributes apply depends on Op.
type Step struct {
	Op        string `hcl:"op,label"`
	Thread    string `hcl:"thread,optional"`
	Lock      string `hcl:"lock,optional"`
	Semaphore string `hcl:"semaphore,optional"`
	Ticks     int    `hcl:"ticks,optional"`
	Tick      int    `hcl:"tick,optional"`
	Value     int    `hcl:"value,optional"`
	Code      int    `hcl:"code,optional"`
	What      string `hcl:"what,optional"`
	Text      string `hcl:"text,optional"`
}

// Step operations.
const (
	OpCreate      = "create"
	OpExec        = "exec"
	OpWait        = "wait"
	OpAcquire     = "acquire"
	OpTryAcquire  = "try_acquire"
	OpRelease     = "release"
	OpDown        = "down"
	OpUp          = "up"
	OpSleep       = "sleep"
	OpSleepUntil  = "sleep_until"
	OpCompute     = "compute"
	OpYield       = "yield"
	OpSetPriority = "set_priority"
	OpSetNice     = "set_nice"
	OpReport      = "report"
	OpWrite       = "write"
	OpExit        = "exit"
	OpKill        = "kill"
)

var reportable = map[string]bool{
	"priority":      true,
	"base_priority": true,
	"nice":          true,
	"recent_cpu":    true,
	"load_avg":      true,
	"ticks":         true,
}

// evalContext exposes the kernel constants to workload expressions.
func evalContext() *hcl.EvalContext {
	n := func(v int) cty.Value { return cty.NumberIntVal(int64(v)) }
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"PRI_MIN":     n(kernel.PriMin),
			"PRI_DEFAULT": n(kernel.PriDefault),
			"PRI_MAX":     n(kernel.PriMax),
			"NICE_MIN":    n(kernel.NiceMin),
			"NICE_MAX":    n(kernel.NiceMax),
		},
	}
}

// Parse decodes and validates a workload.
func Parse(src []byte, filename string) (*Scenario, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse workload %s: %w", filename, diags)
	}
	var sc Scenario
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &sc); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode workload %s: %w", filename, diags)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload %s: %w", filename, err)
	}
	return &sc, nil
}

// Load downloads a workload from any URL afs understands and parses it.
func Load(ctx context.Context, fs afs.Service, URL string) (*Scenario, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load workload %s: %w", URL, err)
	}
	return Parse(data, URL)
}

// Thread returns the declaration named name.
func (s *Scenario) Thread(name string) (*ThreadDecl, bool) {
	for _, t := range s.Threads {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Validate checks that names are unique and every step refers to a
// declared object. Unknown operations are accepted; they kill the thread
// that runs them.
func (s *Scenario) Validate() error {
	locks := map[string]bool{}
	for _, l := range s.Locks {
		if locks[l.Name] {
			return fmt.Errorf("%w: lock %q", ErrDuplicate, l.Name)
		}
		locks[l.Name] = true
	}
	semas := map[string]bool{}
	for _, sm := range s.Semaphores {
		if semas[sm.Name] {
			return fmt.Errorf("%w: semaphore %q", ErrDuplicate, sm.Name)
		}
		semas[sm.Name] = true
	}
	threads := map[string]bool{}
	for _, t := range s.Threads {
		if threads[t.Name] {
			return fmt.Errorf("%w: thread %q", ErrDuplicate, t.Name)
		}
		threads[t.Name] = true
	}
	if !threads[MainThread] {
		return ErrNoMain
	}
	for _, t := range s.Threads {
		for i, st := range t.Steps {
			if err := st.validate(threads, locks, semas); err != nil {
				return fmt.Errorf("thread %q step %d (%s): %w", t.Name, i, st.Op, err)
			}
		}
	}
	return nil
}

func (st *Step) validate(threads, locks, semas map[string]bool) error {
	switch st.Op {
	case OpCreate, OpExec, OpWait:
		if !threads[st.Thread] {
			return fmt.Errorf("%w: %q", ErrUnknownThread, st.Thread)
		}
	case OpAcquire, OpTryAcquire, OpRelease:
		if !locks[st.Lock] {
			return fmt.Errorf("%w: %q", ErrUnknownLock, st.Lock)
		}
	case OpDown, OpUp:
		if !semas[st.Semaphore] {
			return fmt.Errorf("%w: %q", ErrUnknownSemaphore, st.Semaphore)
		}
	case OpReport:
		if !reportable[st.What] {
			return fmt.Errorf("%w: %q", ErrBadReport, st.What)
		}
	}
	return nil
}

func (t *ThreadDecl) priority() int {
	if t.Priority == nil {
		return kernel.PriDefault
	}
	return *t.Priority
}
