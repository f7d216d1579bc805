// Package vt adapts github.com/vito/midterm into the narrow contract the
// rest of this host needs: feed bytes, query size, dump a replayable
// sequence, iterate cells, and resize via the canonical CSI 8 escape.
package vt

import (
	"fmt"
	"strings"

	"github.com/vito/midterm"
)

// Color is either a palette index or a true-color RGB triple.
type Color struct {
	Indexed  bool
	Index    uint8
	R, G, B  uint8
	HasColor bool
}

// Pen is the set of drawing attributes applied to an emitted cell.
type Pen struct {
	Fg, Bg                                             Color
	Bold, Faint, Italic, Underline, Strikethrough, Blink, Inverse bool
}

// Key returns a stable string uniquely identifying this pen's visual
// appearance, used to assign style-palette IDs in encounter order.
// Built explicitly (rather than via %#v on the midterm type) so the key
// stays stable across Go/library versions.
func (p Pen) Key() string {
	var b strings.Builder
	writeColor(&b, p.Fg)
	b.WriteByte(';')
	writeColor(&b, p.Bg)
	for _, set := range []bool{p.Bold, p.Faint, p.Italic, p.Underline, p.Strikethrough, p.Blink, p.Inverse} {
		if set {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func writeColor(b *strings.Builder, c Color) {
	if !c.HasColor {
		b.WriteByte('-')
		return
	}
	if c.Indexed {
		fmt.Fprintf(b, "i%d", c.Index)
		return
	}
	fmt.Fprintf(b, "r%d,%d,%d", c.R, c.G, c.B)
}

// Attrs returns the de-duplicated attribute name list in the order
// spec.md's GLOSSARY enumerates them.
func (p Pen) Attrs() []string {
	var attrs []string
	if p.Bold {
		attrs = append(attrs, "bold")
	}
	if p.Faint {
		attrs = append(attrs, "faint")
	}
	if p.Italic {
		attrs = append(attrs, "italic")
	}
	if p.Underline {
		attrs = append(attrs, "underline")
	}
	if p.Strikethrough {
		attrs = append(attrs, "strikethrough")
	}
	if p.Blink {
		attrs = append(attrs, "blink")
	}
	if p.Inverse {
		attrs = append(attrs, "inverse")
	}
	return attrs
}

// Cell is one grid position: a glyph, its display width (0 for a slot
// consumed by the previous wide character), and the pen it was drawn with.
type Cell struct {
	Char  rune
	Width int
	Pen   Pen
}

// VT wraps a midterm.Terminal of fixed size.
type VT struct {
	term            *midterm.Terminal
	cols, rows      int
	cursorKeyAppMode bool
}

// New creates a VT of the given size.
func New(cols, rows int) *VT {
	return &VT{
		term: midterm.NewTerminal(rows, cols),
		cols: cols,
		rows: rows,
	}
}

// Feed advances the terminal state by the given bytes.
func (v *VT) Feed(data []byte) {
	trackCursorKeyMode(&v.cursorKeyAppMode, data)
	v.term.Write(data) //nolint:errcheck // midterm.Terminal.Write never fails on well-formed input
}

// Size returns the current (cols, rows).
func (v *VT) Size() (cols, rows int) {
	return v.cols, v.rows
}

// CursorKeyAppMode reports whether the child has put the terminal into
// cursor-key application mode (DECCKM), which changes how arrow keys are
// encoded (see command.InputSeq.Encode).
func (v *VT) CursorKeyAppMode() bool {
	return v.cursorKeyAppMode
}

// Resize resizes the midterm grid, records the new size, and then feeds
// the canonical CSI 8 ; rows ; cols t resize request — the same sequence
// real terminals use to tell an application its size changed. The
// sequence is written bit-exactly in that form; Dump does not include
// it, since a dump is replayed into a VT that already has the new size.
func (v *VT) Resize(cols, rows int) {
	v.term.Resize(rows, cols)
	v.cols, v.rows = cols, rows
	seq := fmt.Sprintf("\x1b[8;%d;%dt", rows, cols)
	v.term.Write([]byte(seq)) //nolint:errcheck
}

// View returns the current screen as rows of cells, one row per screen
// line, each row padded to exactly `cols` cells.
func (v *VT) View() [][]Cell {
	rows := make([][]Cell, 0, v.rows)
	for r := 0; r < v.rows && r < len(v.term.Content); r++ {
		rows = append(rows, v.viewRow(r))
	}
	for len(rows) < v.rows {
		rows = append(rows, blankRow(v.cols))
	}
	return rows
}

func (v *VT) viewRow(row int) []Cell {
	line := v.term.Content[row]
	cells := make([]Cell, v.cols)
	var pos int
	for region := range v.term.Format.Regions(row) {
		pen := penFromFormat(region.F)
		end := pos + region.Size
		for c := pos; c < end && c < v.cols; c++ {
			ch := rune(0)
			if c < len(line) {
				ch = line[c]
			}
			width := 1
			if ch == 0 {
				width = 0
				ch = ' '
			}
			cells[c] = Cell{Char: ch, Width: width, Pen: pen}
		}
		pos = end
	}
	// Anything beyond the formatted regions (can happen right after a
	// resize grows the row) is left as blank default-pen cells.
	for c := pos; c < v.cols; c++ {
		cells[c] = Cell{Char: ' ', Width: 1}
	}
	return cells
}

func blankRow(cols int) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = Cell{Char: ' ', Width: 1}
	}
	return row
}

// TextView returns the screen as newline-joined plain text, one line per row.
func (v *VT) TextView() string {
	rows := v.View()
	lines := make([]string, len(rows))
	for i, row := range rows {
		var b strings.Builder
		for _, c := range row {
			if c.Width == 0 {
				continue
			}
			b.WriteRune(c.Char)
		}
		lines[i] = strings.TrimRight(b.String(), " ")
	}
	return strings.Join(lines, "\n")
}

// Dump returns an escape sequence that, fed to a fresh VT of the same
// size, reproduces the current visible state: cursor home, each row's
// content with minimal SGR transitions, then the real cursor position.
func (v *VT) Dump() string {
	var b strings.Builder
	b.WriteString("\x1b[H")
	rows := v.View()
	var lastPen Pen
	havePen := false
	for i, row := range rows {
		if i > 0 {
			b.WriteString("\r\n")
		}
		for _, c := range row {
			if c.Width == 0 {
				continue
			}
			if !havePen || c.Pen.Key() != lastPen.Key() {
				b.WriteString("\x1b[0m")
				b.WriteString(sgr(c.Pen))
				lastPen = c.Pen
				havePen = true
			}
			b.WriteRune(c.Char)
		}
	}
	b.WriteString("\x1b[0m")
	fmt.Fprintf(&b, "\x1b[%d;%dH", v.term.Cursor.Y+1, v.term.Cursor.X+1)
	return b.String()
}

func sgr(p Pen) string {
	var codes []string
	if p.Bold {
		codes = append(codes, "1")
	}
	if p.Faint {
		codes = append(codes, "2")
	}
	if p.Italic {
		codes = append(codes, "3")
	}
	if p.Underline {
		codes = append(codes, "4")
	}
	if p.Blink {
		codes = append(codes, "5")
	}
	if p.Inverse {
		codes = append(codes, "7")
	}
	if p.Strikethrough {
		codes = append(codes, "9")
	}
	if p.Fg.HasColor {
		codes = append(codes, fgCode(p.Fg))
	}
	if p.Bg.HasColor {
		codes = append(codes, bgCode(p.Bg))
	}
	if len(codes) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func fgCode(c Color) string {
	if c.Indexed {
		return fmt.Sprintf("38;5;%d", c.Index)
	}
	return fmt.Sprintf("38;2;%d;%d;%d", c.R, c.G, c.B)
}

func bgCode(c Color) string {
	if c.Indexed {
		return fmt.Sprintf("48;5;%d", c.Index)
	}
	return fmt.Sprintf("48;2;%d;%d;%d", c.R, c.G, c.B)
}
