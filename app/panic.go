package app

import (
	"fmt"
	"image/color"
	"log/slog"
	"strings"

	"ember/emberos/kernel"
	"ember/hal"
)

// panicHandler returns the kernel panic hook. It runs on the panicking
// thread with the kernel locked, so it only logs, paints the panic screen
// and reports through panics.
func panicHandler(h hal.HAL, logger *slog.Logger, panics chan<- kernel.PanicInfo) func(kernel.PanicInfo) {
	return func(info kernel.PanicInfo) {
		logger.Error("kernel panic", "tid", info.TID, "panic", fmt.Sprint(info.Value))
		stack := stackLines(info.Stack)
		if l := h.Logger(); l != nil {
			for _, line := range stack {
				l.WriteLineString(line)
			}
		}

		if disp := h.Display(); disp != nil {
			if fb := disp.Framebuffer(); fb != nil {
				drawPanic(fb, info, stack)
			}
		}

		select {
		case panics <- info:
		default:
		}
	}
}

func drawPanic(fb hal.Framebuffer, info kernel.PanicInfo, stack []string) {
	fb.ClearRGB(255, 255, 255)
	s := newTextScreen(fb, color.RGBA{A: 255})
	s.println("Ember Panic:")
	s.println(fmt.Sprintf("thread: %d", info.TID))
	s.wrap(fmt.Sprintf("panic: %v", info.Value))
	if len(stack) == 0 {
		s.println("stack: unavailable")
	} else {
		s.println("stack:")
		for _, line := range stack {
			s.wrap(line)
		}
	}
	_ = fb.Present()
}

func stackLines(stack []byte) []string {
	var out []string
	for _, line := range strings.Split(string(stack), "\n") {
		if line = strings.TrimRight(line, " \t"); line != "" {
			out = append(out, line)
		}
	}
	return out
}
