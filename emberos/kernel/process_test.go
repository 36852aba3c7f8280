package kernel

import (
	"errors"
	"testing"
)

type countingCloser struct{ closed *int }

func (c countingCloser) Close() error {
	*c.closed++
	return nil
}

func TestWaitReturnsExitCodeOnce(t *testing.T) {
	var code int
	var err1, err2, err3 error
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		tid, err := c.Create("child", 20, func(c *Context) { c.Exit(5) })
		if err != nil {
			t.Errorf("Create() error = %v", err)
			return
		}
		code, err1 = c.Wait(tid)
		_, err2 = c.Wait(tid)
		_, err3 = c.Wait(999)
	})
	drive(t, k, 0)
	if code != 5 || err1 != nil {
		t.Fatalf("Wait() = %d, %v, want 5, nil", code, err1)
	}
	if !errors.Is(err2, ErrNotChild) || !errors.Is(err3, ErrNotChild) {
		t.Fatalf("repeated/unknown Wait() errors = %v, %v, want %v", err2, err3, ErrNotChild)
	}
}

func TestWaitAfterChildAlreadyExited(t *testing.T) {
	var code int
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		tid, _ := c.Create("child", 40, func(c *Context) { c.Exit(-1) })
		code, _ = c.Wait(tid)
	})
	drive(t, k, 0)
	if code != -1 {
		t.Fatalf("Wait() = %d, want -1", code)
	}
}

func TestExitCodesForReturnAndPanic(t *testing.T) {
	var normal, killed int
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		a, _ := c.Create("returns", 20, func(*Context) {})
		b, _ := c.Create("panics", 20, func(*Context) { panic("boom") })
		normal, _ = c.Wait(a)
		killed, _ = c.Wait(b)
	})
	drive(t, k, 0)
	if normal != 0 || killed != ExitKilled {
		t.Fatalf("exit codes = %d, %d, want 0, %d", normal, killed, ExitKilled)
	}
}

func TestExitRunsDeferredCalls(t *testing.T) {
	deferred := false
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		tid, _ := c.Create("child", 40, func(c *Context) {
			defer func() { deferred = true }()
			c.Exit(1)
		})
		_, _ = c.Wait(tid)
	})
	drive(t, k, 0)
	if !deferred {
		t.Fatalf("deferred call did not run on Exit")
	}
}

func TestGrandchildSurvivesParentExit(t *testing.T) {
	var parentCode int
	var grandTID TID
	var waitErr error
	ran := false
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		parent, _ := c.Create("parent", 20, func(c *Context) {
			grandTID, _ = c.Create("grandchild", 10, func(c *Context) {
				ran = true
				c.Exit(3)
			})
			c.Exit(1)
		})
		parentCode, _ = c.Wait(parent)
		_, waitErr = c.Wait(grandTID)
		c.Sleep(5)
	})
	drive(t, k, 0)
	if parentCode != 1 {
		t.Fatalf("Wait(parent) = %d, want 1", parentCode)
	}
	if !errors.Is(waitErr, ErrNotChild) {
		t.Fatalf("Wait(grandchild) error = %v, want %v", waitErr, ErrNotChild)
	}
	if !ran {
		t.Fatalf("orphaned grandchild never ran")
	}
	if _, ok := k.Lookup(grandTID); ok {
		t.Fatalf("orphaned grandchild was not reaped")
	}
}

func TestThreadSlotsExhausted(t *testing.T) {
	var err2 error
	var tid2 TID
	k := boot(t, Options{MaxThreads: 2}, PriDefault, func(c *Context) {
		tid1, err := c.Create("a", 10, func(*Context) {})
		if err != nil {
			t.Errorf("first Create() error = %v", err)
		}
		tid2, err2 = c.Create("b", 10, func(*Context) {})
		_, _ = c.Wait(tid1)
	})
	drive(t, k, 0)
	if tid2 != TIDError || !errors.Is(err2, ErrNoThreadSlots) {
		t.Fatalf("Create() = %d, %v, want %d, %v", tid2, err2, TIDError, ErrNoThreadSlots)
	}
}

func TestExecRunsProcessInItsAddressSpace(t *testing.T) {
	var activated []PageDir
	var code int
	var execErr error
	k := New(Options{Activate: func(pd PageDir) { activated = append(activated, pd) }})
	if _, err := k.Boot("main", PriDefault, func(c *Context) {
		var tid TID
		tid, execErr = c.Exec(ProcessSpec{
			Name:     "user",
			Priority: 20,
			PageDir:  "pd-user",
			Load:     func(*Context) error { return nil },
			Main: func(c *Context) {
				c.Compute(2)
				c.Exit(4)
			},
		})
		code, _ = c.Wait(tid)
	}); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	drive(t, k, 0)
	if execErr != nil || code != 4 {
		t.Fatalf("Exec/Wait = %v, %d, want nil, 4", execErr, code)
	}
	seen := false
	for _, pd := range activated {
		if pd == "pd-user" {
			seen = true
		}
	}
	if !seen {
		t.Fatalf("page directory never activated: %v", activated)
	}
	if st := k.Stats(); st.UserTicks != 2 {
		t.Fatalf("Stats().UserTicks = %d, want 2", st.UserTicks)
	}
}

func TestExecLoadFailure(t *testing.T) {
	var execErr error
	var tid TID
	var children []TID
	mainRan := false
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		tid, execErr = c.Exec(ProcessSpec{
			Name:     "broken",
			Priority: 40,
			Load:     func(*Context) error { return errors.New("no such program") },
			Main:     func(*Context) { mainRan = true },
		})
		children = c.Children()
	})
	drive(t, k, 0)
	if tid != TIDError || !errors.Is(execErr, ErrLoadFailed) {
		t.Fatalf("Exec() = %d, %v, want %d, %v", tid, execErr, TIDError, ErrLoadFailed)
	}
	if len(children) != 0 || mainRan {
		t.Fatalf("failed exec left children %v, main ran %v", children, mainRan)
	}
}

func TestExecLoaderPanicFailsExec(t *testing.T) {
	var execErr error
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		_, execErr = c.Exec(ProcessSpec{
			Name: "crashy",
			Load: func(*Context) error { panic("bad elf") },
		})
	})
	drive(t, k, 0)
	if !errors.Is(execErr, ErrLoadFailed) {
		t.Fatalf("Exec() error = %v, want %v", execErr, ErrLoadFailed)
	}
}

func TestExitClosesOpenFiles(t *testing.T) {
	closed := 0
	var fds []int
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		tid, _ := c.Create("opener", 40, func(c *Context) {
			ft := c.Thread().Files()
			fds = append(fds, ft.Add(countingCloser{&closed}), ft.Add(countingCloser{&closed}))
		})
		_, _ = c.Wait(tid)
	})
	drive(t, k, 0)
	if len(fds) != 2 || fds[0] != 2 || fds[1] != 3 {
		t.Fatalf("descriptors = %v, want [2 3]", fds)
	}
	if closed != 2 {
		t.Fatalf("closed %d files on exit, want 2", closed)
	}
}

func TestFileTable(t *testing.T) {
	closed := 0
	ft := newFileTable()
	fd := ft.Add(countingCloser{&closed})
	if _, ok := ft.Get(fd); !ok {
		t.Fatalf("Get(%d) missing", fd)
	}
	if err := ft.Close(fd); err != nil {
		t.Fatalf("Close(%d) error = %v", fd, err)
	}
	if err := ft.Close(fd); !errors.Is(err, ErrBadFD) {
		t.Fatalf("second Close(%d) error = %v, want %v", fd, err, ErrBadFD)
	}
	if next := ft.Add(countingCloser{&closed}); next != fd+1 {
		t.Fatalf("Add() = %d, want %d", next, fd+1)
	}
	if closed != 1 || ft.Len() != 1 {
		t.Fatalf("closed %d, len %d, want 1, 1", closed, ft.Len())
	}
}

func TestEndToEndDonationAndWait(t *testing.T) {
	var childPeak, childAfter, parentPri int
	var code int
	var again error
	k := New(Options{})
	l := k.NewLock("l")
	if _, err := k.Boot("parent", 20, func(c *Context) {
		var child TID
		child, _ = c.Create("child", 20, func(c *Context) {
			l.Acquire(c)
			c.Yield()
			childPeak = c.Priority()
			l.Release(c)
			c.Exit(9)
		})
		c.Yield()
		c.SetPriority(40)
		l.Acquire(c)
		for _, in := range k.Snapshot() {
			if in.TID == child {
				childAfter = in.Priority
			}
		}
		parentPri = c.Priority()
		l.Release(c)
		code, _ = c.Wait(child)
		_, again = c.Wait(child)
	}); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	drive(t, k, 0)
	if childPeak != 40 || childAfter != 20 || parentPri != 40 {
		t.Fatalf("priorities: child peak %d, child after %d, parent %d, want 40 20 40", childPeak, childAfter, parentPri)
	}
	if code != 9 || !errors.Is(again, ErrNotChild) {
		t.Fatalf("Wait() = %d then %v, want 9 then %v", code, again, ErrNotChild)
	}
}

func TestExecLoaderExitFailsExec(t *testing.T) {
	loaders := map[string]func(*Context) error{
		"exit": func(c *Context) error { c.Exit(3); return nil },
		"kill": func(c *Context) error { c.Kill(); return nil },
	}
	for name, loader := range loaders {
		t.Run(name, func(t *testing.T) {
			var execErr error
			var tid TID
			var children []TID
			k := boot(t, Options{}, PriDefault, func(c *Context) {
				tid, execErr = c.Exec(ProcessSpec{Name: "quitter", Priority: 40, Load: loader})
				children = c.Children()
			})
			drive(t, k, 100)
			if tid != TIDError || !errors.Is(execErr, ErrLoadFailed) {
				t.Fatalf("Exec() = %d, %v, want %d, %v", tid, execErr, TIDError, ErrLoadFailed)
			}
			if len(children) != 0 {
				t.Fatalf("failed exec left children %v", children)
			}
		})
	}
}

func TestExitReleasesFileLock(t *testing.T) {
	var code int
	var got bool
	k := boot(t, Options{}, PriDefault, func(c *Context) {
		tid, _ := c.Create("writer", 20, func(c *Context) {
			c.AcquireFileLock()
			c.Kill()
		})
		code, _ = c.Wait(tid)
		c.AcquireFileLock()
		got = c.Kernel().fileLock.HeldBy(c)
		c.ReleaseFileLock()
	})
	drive(t, k, 100)
	if code != ExitKilled || !got {
		t.Fatalf("Wait() = %d, file lock taken %v, want %d, true", code, got, ExitKilled)
	}
}

func TestExitHandsHeldLocksToWaiters(t *testing.T) {
	var code, pri int
	var holderOfA TID
	var freeB bool
	var holder TID
	k := New(Options{})
	a, b := k.NewLock("a"), k.NewLock("b")
	if _, err := k.Boot("main", PriDefault, func(c *Context) {
		holder, _ = c.Create("holder", 20, func(c *Context) {
			a.Acquire(c)
			b.Acquire(c)
			c.Sleep(2)
			c.Exit(1)
		})
		c.Sleep(1)
		a.Acquire(c)
		holderOfA = a.Holder()
		pri = c.Priority()
		freeB = b.TryAcquire(c)
		code, _ = c.Wait(holder)
		b.Release(c)
		a.Release(c)
	}); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	drive(t, k, 100)
	if holderOfA != 1 || !freeB || pri != PriDefault {
		t.Fatalf("after holder exit: a held by %d, b free %v, priority %d, want 1, true, %d", holderOfA, freeB, pri, PriDefault)
	}
	if code != 1 {
		t.Fatalf("Wait() = %d, want 1", code)
	}
	if _, ok := k.Lookup(holder); ok {
		t.Fatalf("exited holder was not reaped")
	}
}
