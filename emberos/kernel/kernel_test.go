package kernel

import (
	"context"
	"slices"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

func boot(t *testing.T, opts Options, priority int, entry func(*Context)) *Kernel {
	t.Helper()
	k := New(opts)
	if _, err := k.Boot("main", priority, entry); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	return k
}

func drive(t *testing.T, k *Kernel, maxTicks uint64) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- k.Drive(context.Background(), maxTicks) }()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Drive() error = %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatalf("timeout waiting for the initial thread to exit")
	}
}

func waitPanic(t *testing.T, ch <-chan PanicInfo) PanicInfo {
	t.Helper()
	select {
	case info := <-ch:
		return info
	case <-time.After(testTimeout):
		t.Fatalf("timeout waiting for kernel panic")
		return PanicInfo{}
	}
}

func panicKernel() (*Kernel, chan PanicInfo) {
	ch := make(chan PanicInfo, 1)
	k := New(Options{PanicHandler: func(info PanicInfo) { ch <- info }})
	return k, ch
}

func assertOrder(t *testing.T, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestBootRunsInitialThread(t *testing.T) {
	ran := false
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		ran = c.Name() == "main" && c.TID() == 1
		c.Exit(3)
	})
	drive(t, k, 0)
	if !ran {
		t.Fatalf("initial thread did not run as main#1")
	}
	if got := k.ExitCode(); got != 3 {
		t.Fatalf("ExitCode() = %d, want 3", got)
	}
	if _, err := k.Boot("again", PriDefault, func(*Context) {}); err != ErrBooted {
		t.Fatalf("second Boot() error = %v, want %v", err, ErrBooted)
	}
}

func TestDriveTickBudget(t *testing.T) {
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		c.Sleep(100)
	})
	if err := k.Drive(context.Background(), 10); err != ErrTickBudget {
		t.Fatalf("Drive() error = %v, want %v", err, ErrTickBudget)
	}
	if got := k.Ticks(); got != 10 {
		t.Fatalf("Ticks() = %d, want 10", got)
	}
	drive(t, k, 0)
}

func TestSnapshotDescribesThreads(t *testing.T) {
	var snap []ThreadInfo
	k := New(Options{})
	l := k.NewLock("disk")
	if _, err := k.Boot("main", PriDefault, func(c *Context) {
		l.Acquire(c)
		if _, err := c.Create("worker", 20, func(*Context) {}); err != nil {
			t.Errorf("Create() error = %v", err)
		}
		snap = k.Snapshot()
		l.Release(c)
	}); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	drive(t, k, 0)

	if len(snap) != 2 {
		t.Fatalf("len(Snapshot()) = %d, want 2", len(snap))
	}
	if snap[0].Name != "main" || snap[0].Status != StatusRunning || !slices.Equal(snap[0].Holding, []string{"disk"}) {
		t.Fatalf("main info = %+v", snap[0])
	}
	if snap[1].Name != "worker" || snap[1].Status != StatusReady || snap[1].Parent != 1 || snap[1].Priority != 20 {
		t.Fatalf("worker info = %+v", snap[1])
	}
}

func TestThreadNameTruncated(t *testing.T) {
	var name string
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		_, _ = c.Create("a-very-long-thread-name", 40, func(c *Context) {
			name = c.Name()
		})
	})
	drive(t, k, 0)
	if name != "a-very-long-thr" {
		t.Fatalf("Name() = %q, want %q", name, "a-very-long-thr")
	}
}

func TestEventsRecordSwitches(t *testing.T) {
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		_, _ = c.Create("hi", 40, func(*Context) {})
	})
	drive(t, k, 0)

	evs := make([]Event, 64)
	n := k.Events(evs)
	kinds := map[EventKind]int{}
	for _, ev := range evs[:n] {
		kinds[ev.Kind]++
	}
	if kinds[EventCreate] != 2 {
		t.Fatalf("create events = %d, want 2", kinds[EventCreate])
	}
	if kinds[EventSwitch] == 0 || kinds[EventExit] != 2 {
		t.Fatalf("events = %v", kinds)
	}
	if k.Events(evs) != 0 {
		t.Fatalf("Events() did not drain the ring")
	}
}

func TestEventRingDropsWhenFull(t *testing.T) {
	var r eventRing
	r.slots = make([]Event, 2)
	if !r.push(Event{Kind: EventCreate}) || !r.push(Event{Kind: EventExit}) {
		t.Fatalf("push() failed before the ring was full")
	}
	if r.push(Event{Kind: EventReap}) {
		t.Fatalf("push() succeeded on a full ring")
	}
	if r.dropped != 1 {
		t.Fatalf("dropped = %d, want 1", r.dropped)
	}
	ev, ok := r.pop()
	if !ok || ev.Kind != EventCreate {
		t.Fatalf("pop() = %v, %v, want create", ev, ok)
	}
}
