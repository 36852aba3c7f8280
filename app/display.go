package app

import (
	"image/color"
	"strings"
	"unicode/utf8"

	"tinygo.org/x/tinyfont"

	"ember/emberos/fonts/font5x7"
	"ember/hal"
)

// fbDisplay exposes an RGB565 framebuffer as a drivers.Displayer.
type fbDisplay struct {
	fb hal.Framebuffer
}

func (d fbDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	if buf == nil {
		return
	}

	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}

	pixel := hal.RGB565(c.R, c.G, c.B)
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d fbDisplay) Display() error { return nil }

// textScreen lays out rows of 5x7 text on a framebuffer.
type textScreen struct {
	d    fbDisplay
	fg   color.RGBA
	row  int16
	cols int16
	rows int16
}

func newTextScreen(fb hal.Framebuffer, fg color.RGBA) *textScreen {
	w, h := fbDisplay{fb: fb}.Size()
	return &textScreen{
		d:    fbDisplay{fb: fb},
		fg:   fg,
		cols: max(w/font5x7.Width, 1),
		rows: h / font5x7.Height,
	}
}

// full reports whether every row is used.
func (s *textScreen) full() bool { return s.row >= s.rows }

// println draws line on the next row, truncated to the screen width.
func (s *textScreen) println(line string) {
	if s.full() {
		return
	}
	chunk, _ := takeRunes(line, s.cols)
	tinyfont.WriteLine(s.d, font5x7.Font, 0, s.row*font5x7.Height+font5x7.Baseline, chunk, s.fg)
	s.row++
}

// wrap draws line over as many rows as it needs.
func (s *textScreen) wrap(line string) {
	for len(line) > 0 && !s.full() {
		chunk, rest := takeRunes(line, s.cols)
		s.println(chunk)
		line = strings.TrimLeft(rest, " ")
	}
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
