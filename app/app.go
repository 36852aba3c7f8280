// Package app boots an Ember kernel on a HAL and runs a workload on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/viant/afs"

	"ember/emberos/kernel"
	"ember/emberos/workload"
	"ember/hal"
	"ember/internal/buildinfo"
	"ember/internal/ctxlog"
	"ember/internal/idgen"
)

// ErrKernelPanic is returned when the kernel halted on a fatal error.
var ErrKernelPanic = errors.New("app: kernel panic")

const eventBatch = 64

// System is one boot of the kernel running a workload.
type System struct {
	cfg    *Config
	h      hal.HAL
	ctx    context.Context
	logger *slog.Logger
	fs     afs.Service
	runner *workload.Runner
	k      *kernel.Kernel
	mon    *monitor
	events []kernel.Event
	panics chan kernel.PanicInfo
	space  atomic.Pointer[string]

	// hold keeps the last frame on screen after the run ends.
	hold     bool
	started  bool
	finished bool
}

func newSystem(ctx context.Context, h hal.HAL, cfg *Config, sc *workload.Scenario) *System {
	logger := newLogger(cfg.Log.Level, cfg.Log.Format, hal.LogWriter(h.Logger())).
		With("boot", idgen.New())
	s := &System{
		cfg:    cfg,
		h:      h,
		logger: logger,
		fs:     afs.New(),
		events: make([]kernel.Event, eventBatch),
		panics: make(chan kernel.PanicInfo, 1),
		hold:   !cfg.Headless.Enabled,
	}
	opts := cfg.KernelOptions()
	opts.PanicHandler = panicHandler(h, logger, s.panics)
	opts.Activate = s.activate
	s.runner = workload.NewRunner(sc, opts)
	s.k = s.runner.Kernel()
	s.ctx = ctxlog.WithLogger(ctx, logger)
	s.mon = &monitor{
		title: "ember " + buildinfo.Short(),
		k:     s.k,
		tr:    s.runner.Transcript(),
		space: s.addressSpace,
	}
	logger.Info("system created", "version", buildinfo.Long(), "mlfqs", cfg.Scheduler.MLFQS, "threads", len(sc.Threads))
	return s
}

// New boots sc with the default configuration and returns the per-frame
// step function.
func New(ctx context.Context, h hal.HAL, sc *workload.Scenario) func() error {
	return NewWithConfig(ctx, h, DefaultConfig(), sc)
}

// NewWithConfig boots sc on h and returns the per-frame step function.
// Ticks come from the HAL time stream.
func NewWithConfig(ctx context.Context, h hal.HAL, cfg *Config, sc *workload.Scenario) func() error {
	return newSystem(ctx, h, cfg, sc).Step
}

// RunDeterministic runs sc to completion on the deterministic clock and
// checks the transcript against cfg.Run.Expect when set.
func RunDeterministic(ctx context.Context, h hal.HAL, cfg *Config, sc *workload.Scenario) (*workload.Result, error) {
	s := newSystem(ctx, h, cfg, sc)
	type outcome struct {
		res *workload.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.runner.Run(s.ctx, cfg.Run.MaxTicks)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		s.drainEvents()
		if fb := s.framebuffer(); fb != nil {
			if err := s.mon.render(fb); err != nil {
				return out.res, err
			}
		}
		if out.err != nil {
			if out.res != nil {
				s.report(out.res)
			}
			return out.res, out.err
		}
		return out.res, s.finish(out.res)
	case info := <-s.panics:
		return nil, fmt.Errorf("%w: thread %d: %v", ErrKernelPanic, info.TID, info.Value)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Step advances the live system by one frame. It returns hal.ErrStop when
// the run is over and nothing is left to show.
func (s *System) Step() error {
	if !s.started {
		s.started = true
		if err := s.runner.Start(s.ctx); err != nil {
			return err
		}
		s.startClock()
	}
	select {
	case info := <-s.panics:
		if !s.hold {
			return fmt.Errorf("%w: thread %d: %v", ErrKernelPanic, info.TID, info.Value)
		}
	default:
	}
	if s.k.InPanicMode() {
		return nil
	}

	s.drainEvents()
	if fb := s.framebuffer(); fb != nil {
		if err := s.mon.render(fb); err != nil {
			return err
		}
	}
	if s.finished {
		return nil
	}
	select {
	case <-s.k.Done():
		s.finished = true
		if err := s.finish(s.runner.Result()); err != nil {
			return err
		}
		if !s.hold {
			return hal.ErrStop
		}
	default:
	}
	return nil
}

// startClock feeds the HAL tick stream into the kernel timer.
func (s *System) startClock() {
	ht := s.h.Time()
	if ht == nil {
		return
	}
	ch := ht.Ticks()
	if ch == nil {
		return
	}
	go func() {
		for seq := range ch {
			if s.k.InPanicMode() {
				continue
			}
			s.k.TickTo(seq)
		}
	}()
}

// activate remembers the last user address space switched in.
func (s *System) activate(pd kernel.PageDir) {
	if pd == nil {
		return
	}
	name := fmt.Sprint(pd)
	s.space.Store(&name)
}

func (s *System) addressSpace() string {
	if p := s.space.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *System) framebuffer() hal.Framebuffer {
	if d := s.h.Display(); d != nil {
		return d.Framebuffer()
	}
	return nil
}

// drainEvents empties the kernel event ring into the debug log.
func (s *System) drainEvents() {
	for {
		n := s.k.Events(s.events)
		for _, ev := range s.events[:n] {
			s.logger.Debug("sched", "tick", ev.Tick, "event", ev.Kind.String(),
				"tid", ev.TID, "other", ev.Other, "value", ev.Value)
		}
		if n < len(s.events) {
			return
		}
	}
}

// report prints the transcript and a summary line.
func (s *System) report(res *workload.Result) {
	if l := s.h.Logger(); l != nil {
		for _, line := range res.Transcript.Lines() {
			l.WriteLineString(line)
		}
	}
	s.logger.Info("run finished",
		"exit", res.ExitCode,
		"ticks", res.Ticks,
		"idle_ticks", res.Stats.IdleTicks,
		"kernel_ticks", res.Stats.KernelTicks,
		"user_ticks", res.Stats.UserTicks,
		"dropped_events", s.k.DroppedEvents(),
	)
}

func (s *System) finish(res *workload.Result) error {
	s.report(res)
	if URL := s.cfg.Run.Record; URL != "" {
		if err := res.Transcript.Save(s.ctx, s.fs, URL); err != nil {
			return err
		}
		s.logger.Info("transcript saved", "url", URL)
	}
	if URL := s.cfg.Run.Expect; URL != "" {
		if err := res.Transcript.ExpectURL(s.ctx, s.fs, URL); err != nil {
			s.logger.Error("transcript mismatch", "expect", URL)
			return err
		}
		s.logger.Info("transcript matches", "expect", URL)
	}
	return nil
}
