package kernel

import (
	"fmt"
	"runtime/debug"
)

// PanicInfo describes a kernel panic.
type PanicInfo struct {
	TID   TID
	Value any
	Stack []byte
}

// InPanicMode reports whether the kernel has panicked.
func (k *Kernel) InPanicMode() bool {
	return k.panicked.Load()
}

// fatalf reports a broken kernel invariant and halts the calling goroutine
// with the kernel still locked, so no other thread runs again. The panic
// handler is invoked at most once.
func (k *Kernel) fatalf(format string, args ...any) {
	info := PanicInfo{Value: fmt.Sprintf(format, args...)}
	if k.current != nil {
		info.TID = k.current.tid
	}
	k.triggerPanic(info)
	select {}
}

func (k *Kernel) triggerPanic(info PanicInfo) {
	k.panicOnce.Do(func() {
		k.panicked.Store(true)
		info.Stack = debug.Stack()
		if fn := k.opts.PanicHandler; fn != nil {
			fn(info)
		}
	})
}
