package hal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type lineLogger struct{ lines []string }

func (l *lineLogger) WriteLineString(s string) { l.lines = append(l.lines, s) }
func (l *lineLogger) WriteLineBytes(b []byte)  { l.lines = append(l.lines, string(b)) }

func TestLogWriterSplitsLines(t *testing.T) {
	l := &lineLogger{}
	w := LogWriter(l)
	if _, err := w.Write([]byte("one\ntwo\r\nthr")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := strings.Join(l.lines, "|"); got != "one|two" {
		t.Fatalf("lines = %q, want %q", got, "one|two")
	}
	w.Write([]byte("ee\n"))
	if len(l.lines) != 3 || l.lines[2] != "three" {
		t.Fatalf("lines = %q", l.lines)
	}
}

func TestHostTimeTicksFollowWallClock(t *testing.T) {
	now := time.Unix(0, 0)
	ht := newHostTime(10 * time.Millisecond)
	ht.now = func() time.Time { return now }

	ht.step()
	if got := <-ht.Ticks(); got != 1 {
		t.Fatalf("first tick = %d, want 1", got)
	}

	now = now.Add(5 * time.Millisecond)
	ht.step()
	select {
	case seq := <-ht.Ticks():
		t.Fatalf("unexpected tick %d after 5ms", seq)
	default:
	}

	now = now.Add(30 * time.Millisecond)
	ht.step()
	if got := <-ht.Ticks(); got != 4 {
		t.Fatalf("tick after 35ms = %d, want 4", got)
	}
}

func TestFramebufferPresentPublishesFrame(t *testing.T) {
	fb := newHostFramebuffer(4, 2)
	fb.ClearRGB(255, 0, 0)
	snap := make([]byte, len(fb.buf))
	fb.snapshotRGB565(snap)
	if snap[0] != 0 || snap[1] != 0 {
		t.Fatalf("frame visible before Present")
	}
	if err := fb.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	fb.snapshotRGB565(snap)
	rgba := make([]byte, 4*4*2)
	expandRGB565(rgba, snap)
	if rgba[0] != 255 || rgba[1] != 0 || rgba[2] != 0 || rgba[3] != 255 {
		t.Fatalf("pixel 0 = %v, want red", rgba[:4])
	}
}

func TestRGB565RoundTrip(t *testing.T) {
	r, g, b := rgb888From565(RGB565(255, 255, 255))
	if r != 255 || g != 255 || b != 255 {
		t.Fatalf("white = %d,%d,%d", r, g, b)
	}
}

func TestRunHeadlessStopsOnErrStop(t *testing.T) {
	var out bytes.Buffer
	frames := 0
	err := RunHeadless(context.Background(), func(h HAL) func() error {
		h.Logger().WriteLineString("booted")
		return func() error {
			frames++
			if frames == 3 {
				return ErrStop
			}
			return nil
		}
	}, HeadlessConfig{Hz: 1000, Host: HostOptions{Log: &out}})
	if err != nil {
		t.Fatalf("RunHeadless() error = %v", err)
	}
	if frames != 3 || out.String() != "booted\n" {
		t.Fatalf("frames = %d, log = %q", frames, out.String())
	}
}

func TestRunHeadlessFrameLimitAndErrors(t *testing.T) {
	frames := 0
	err := RunHeadless(context.Background(), func(HAL) func() error {
		return func() error { frames++; return nil }
	}, HeadlessConfig{Hz: 1000, Ticks: 5})
	if err != nil || frames != 5 {
		t.Fatalf("RunHeadless() = %v after %d frames, want nil after 5", err, frames)
	}

	boom := errors.New("boom")
	err = RunHeadless(context.Background(), func(HAL) func() error {
		return func() error { return boom }
	}, HeadlessConfig{Hz: 1000})
	if !errors.Is(err, boom) {
		t.Fatalf("RunHeadless() error = %v, want %v", err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = RunHeadless(ctx, func(HAL) func() error { return nil }, HeadlessConfig{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunHeadless() error = %v, want %v", err, context.Canceled)
	}
}
