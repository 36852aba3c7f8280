package font5x7

import (
	"image/color"
	"testing"

	"tinygo.org/x/tinyfont"
)

type grid struct {
	w, h int16
	px   map[[2]int16]bool
}

func (g *grid) Size() (int16, int16) { return g.w, g.h }

func (g *grid) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.px[[2]int16{x, y}] = true
}

func (g *grid) Display() error { return nil }

func TestTableCoversPrintableASCII(t *testing.T) {
	if got, want := len(glyphData), (0x7e-0x20+1)*5; got != want {
		t.Fatalf("len(glyphData) = %d, want %d", got, want)
	}
}

func TestNonASCIIRendersQuestionMark(t *testing.T) {
	if Columns('é') != Columns('?') || Columns('\n') != Columns('?') {
		t.Fatalf("non-printable runes do not fall back to '?'")
	}
}

func TestDrawCharPlacesPixelsAboveBaseline(t *testing.T) {
	g := &grid{w: 16, h: 16, px: map[[2]int16]bool{}}
	tinyfont.DrawChar(g, Font, 0, Baseline, 'I', color.RGBA{A: 255})
	// 'I' has a full-height stem in column 2.
	for row := int16(0); row < 7; row++ {
		if !g.px[[2]int16{2, row}] {
			t.Fatalf("pixel (2,%d) not set", row)
		}
	}
	if g.px[[2]int16{2, 7}] {
		t.Fatalf("pixel below baseline set")
	}
}

func TestGlyphInfo(t *testing.T) {
	info := Font.GetGlyph('A').Info()
	if info.XAdvance != Width || info.Rune != 'A' {
		t.Fatalf("Info() = %+v", info)
	}
	if Font.GetYAdvance() != Height {
		t.Fatalf("GetYAdvance() = %d, want %d", Font.GetYAdvance(), Height)
	}
}
