package app

import (
	"fmt"
	"image/color"
	"strings"

	"ember/emberos/kernel"
	"ember/emberos/workload"
	"ember/hal"
)

// monitor paints the thread table and the tail of the transcript.
type monitor struct {
	title string
	k     *kernel.Kernel
	tr    *workload.Transcript
	space func() string
}

var monitorFG = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}

func (m *monitor) header() []string {
	mode := "prio"
	if m.k.MLFQS() {
		mode = "mlfqs"
	}
	st := m.k.Stats()
	la := m.k.LoadAvg()
	lines := []string{
		fmt.Sprintf("%s  tick %d  load %d.%02d  %s", m.title, m.k.Ticks(), la/100, la%100, mode),
		fmt.Sprintf("idle %d  kernel %d  user %d", st.IdleTicks, st.KernelTicks, st.UserTicks),
	}
	if m.space != nil {
		if pd := m.space(); pd != "" {
			lines = append(lines, "space "+pd)
		}
	}
	return lines
}

func (m *monitor) threadRows() []string {
	rows := []string{"TID NAME            ST  PRI BASE NICE  RCPU WAIT"}
	for _, in := range m.k.Snapshot() {
		rows = append(rows, fmt.Sprintf("%3d %-15s %-3s %3d %4d %4d %5d %s",
			in.TID, in.Name, statusCode(in.Status), in.Priority, in.BasePriority,
			in.Nice, in.RecentCPU, in.WaitingOn))
	}
	return rows
}

func statusCode(s kernel.Status) string {
	switch s {
	case kernel.StatusRunning:
		return "RUN"
	case kernel.StatusReady:
		return "RDY"
	case kernel.StatusBlocked:
		return "BLK"
	case kernel.StatusDying:
		return "DIE"
	default:
		return "?"
	}
}

// render draws one frame. It must not be called after a kernel panic.
func (m *monitor) render(fb hal.Framebuffer) error {
	fb.ClearRGB(0x10, 0x10, 0x20)
	s := newTextScreen(fb, monitorFG)
	for _, line := range m.header() {
		s.println(line)
	}
	for _, line := range m.threadRows() {
		s.println(line)
	}
	if m.tr != nil && !s.full() {
		s.println(strings.Repeat("-", int(s.cols)))
		lines := m.tr.Lines()
		if room := int(s.rows - s.row); len(lines) > room {
			lines = lines[len(lines)-room:]
		}
		for _, line := range lines {
			s.println(line)
		}
	}
	return fb.Present()
}
