package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/viant/afs"

	"ember/app"
	"ember/emberos/workload"
	"ember/hal"
	"ember/internal/buildinfo"
	"ember/internal/tracing"
)

type flags struct {
	config    string
	scenario  string
	expect    string
	record    string
	mlfqs     bool
	headless  bool
	hz        int
	ticks     uint64
	maxTicks  uint64
	logLevel  string
	logFormat string
	trace     bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "YAML config file or URL.")
	flag.StringVar(&f.scenario, "scenario", "", "Workload HCL file or URL.")
	flag.StringVar(&f.expect, "expect", "", "Golden transcript to compare against.")
	flag.StringVar(&f.record, "record", "", "Save the transcript to this URL.")
	flag.BoolVar(&f.mlfqs, "mlfqs", false, "Use the multi-level feedback queue scheduler.")
	flag.BoolVar(&f.headless, "headless", true, "Run without a window.")
	flag.IntVar(&f.hz, "hz", 0, "Frame rate of a real-time headless run (0 = deterministic clock).")
	flag.Uint64Var(&f.ticks, "ticks", 0, "Stop a real-time headless run after N frames (0 = until done).")
	flag.Uint64Var(&f.maxTicks, "max-ticks", 0, "Tick budget of a deterministic run.")
	flag.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error.")
	flag.StringVar(&f.logFormat, "log-format", "", "text or json.")
	flag.BoolVar(&f.trace, "trace", false, "Write OpenTelemetry spans.")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, f); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	fs := afs.New()
	cfg := app.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = app.LoadConfig(ctx, fs, f.config); err != nil {
			return err
		}
	}
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "scenario":
			cfg.Run.Scenario = f.scenario
		case "expect":
			cfg.Run.Expect = f.expect
		case "record":
			cfg.Run.Record = f.record
		case "mlfqs":
			cfg.Scheduler.MLFQS = f.mlfqs
		case "headless":
			cfg.Headless.Enabled = f.headless
		case "hz":
			cfg.Headless.Hz = f.hz
		case "ticks":
			cfg.Headless.Ticks = f.ticks
		case "max-ticks":
			cfg.Run.MaxTicks = f.maxTicks
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "log-format":
			cfg.Log.Format = f.logFormat
		case "trace":
			cfg.Trace.Enabled = f.trace
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Trace.Enabled {
		w, closeTrace, err := traceWriter(cfg.Trace.Output)
		if err != nil {
			return err
		}
		defer closeTrace()
		shutdown, err := tracing.Init("ember", buildinfo.Short(), w)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer shutdown(context.Background())
	}

	sc, err := workload.Load(ctx, fs, cfg.Run.Scenario)
	if err != nil {
		return err
	}

	host := hal.HostOptions{Hz: cfg.Scheduler.TimerFreq}
	newApp := func(h hal.HAL) func() error {
		return app.NewWithConfig(ctx, h, cfg, sc)
	}
	switch {
	case !cfg.Headless.Enabled:
		return hal.RunWindow(newApp, host)
	case cfg.Headless.Hz > 0:
		return hal.RunHeadless(ctx, newApp, hal.HeadlessConfig{
			Hz:    cfg.Headless.Hz,
			Ticks: cfg.Headless.Ticks,
			Host:  host,
		})
	default:
		_, err := app.RunDeterministic(ctx, hal.New(host), cfg, sc)
		return err
	}
}

func traceWriter(output string) (io.Writer, func(), error) {
	switch output {
	case "", "stderr":
		return os.Stderr, func() {}, nil
	case "stdout":
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return file, func() { file.Close() }, nil
}
