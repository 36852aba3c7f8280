package app

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"ember/emberos/kernel"
)

// Config is the serialisable host configuration. Zero fields fall back to
// the kernel defaults.
type Config struct {
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Trace     TraceConfig     `json:"trace" yaml:"trace"`
	Headless  HeadlessConfig  `json:"headless" yaml:"headless"`
	Run       RunConfig       `json:"run" yaml:"run"`
}

type SchedulerConfig struct {
	MLFQS      bool `json:"mlfqs" yaml:"mlfqs"`
	TimeSlice  int  `json:"timeSlice" yaml:"timeSlice"`
	TimerFreq  int  `json:"timerFreq" yaml:"timerFreq"`
	MaxThreads int  `json:"maxThreads" yaml:"maxThreads"`
	EventSlots int  `json:"eventSlots" yaml:"eventSlots"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type TraceConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Output is "stdout", "stderr" or a file path.
	Output string `json:"output" yaml:"output"`
}

// HeadlessConfig selects how the scenario is clocked. With Hz zero the run
// is deterministic: the clock only advances once every thread is waiting
// for it. Otherwise ticks arrive in real time at Hz for at most Ticks
// frames.
type HeadlessConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Hz      int    `json:"hz" yaml:"hz"`
	Ticks   uint64 `json:"ticks" yaml:"ticks"`
}

type RunConfig struct {
	Scenario string `json:"scenario" yaml:"scenario"`
	// Expect is an optional golden transcript URL.
	Expect string `json:"expect" yaml:"expect"`
	// Record is an optional URL the transcript is saved to.
	Record   string `json:"record" yaml:"record"`
	MaxTicks uint64 `json:"maxTicks" yaml:"maxTicks"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Trace:    TraceConfig{Output: "stderr"},
		Headless: HeadlessConfig{Enabled: true},
		Run:      RunConfig{MaxTicks: 10000},
	}
}

// Validate returns an error describing the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	s := c.Scheduler
	if s.TimeSlice < 0 || s.TimerFreq < 0 || s.MaxThreads < 0 {
		return fmt.Errorf("scheduler.timeSlice, timerFreq and maxThreads must be >= 0")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	if c.Headless.Hz < 0 {
		return fmt.Errorf("headless.hz must be >= 0")
	}
	if c.Run.Scenario == "" {
		return fmt.Errorf("run.scenario is required")
	}
	return nil
}

// KernelOptions maps the scheduler section onto kernel options.
func (c *Config) KernelOptions() kernel.Options {
	return kernel.Options{
		MLFQS:      c.Scheduler.MLFQS,
		TimeSlice:  c.Scheduler.TimeSlice,
		TimerFreq:  c.Scheduler.TimerFreq,
		MaxThreads: c.Scheduler.MaxThreads,
		EventSlots: c.Scheduler.EventSlots,
	}
}

// LoadConfig reads a YAML configuration from URL on top of the defaults.
// The result is not validated; flags may still fill required fields.
func LoadConfig(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", URL, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", URL, err)
	}
	return cfg, nil
}
