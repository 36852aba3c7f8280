package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// HostOptions configures the host HAL.
type HostOptions struct {
	// Log receives log lines. Defaults to os.Stdout.
	Log io.Writer
	// Width and Height size the framebuffer. Default 320x320.
	Width, Height int
	// Hz is the rate of the tick stream. Default 100.
	Hz int
}

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	t      *hostTime
}

// New returns a host HAL implementation.
func New(opts HostOptions) HAL {
	return newHost(opts)
}

func newHost(opts HostOptions) *hostHAL {
	if opts.Log == nil {
		opts.Log = os.Stdout
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 320, 320
	}
	if opts.Hz <= 0 {
		opts.Hz = 100
	}
	return &hostHAL{
		logger: &hostLogger{w: opts.Log},
		fb:     newHostFramebuffer(opts.Width, opts.Height),
		t:      newHostTime(time.Second / time.Duration(opts.Hz)),
	}
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
