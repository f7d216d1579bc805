package vt

import "github.com/vito/midterm"

// penFromFormat translates a midterm.Format region into this package's
// own Pen type. Isolated here, rather than spread through vt.go, so the
// one place that has to know midterm's field names stays small.
func penFromFormat(f midterm.Format) Pen {
	return Pen{
		Fg:            colorFromMidterm(f.Fg),
		Bg:            colorFromMidterm(f.Bg),
		Bold:          f.Bold,
		Faint:         f.Faint,
		Italic:        f.Italic,
		Underline:     f.Underline,
		Strikethrough: f.Strikethrough,
		Blink:         f.Blink,
		Inverse:       f.Inverse,
	}
}

func colorFromMidterm(c midterm.Color) Color {
	if !c.Valid() {
		return Color{}
	}
	if r, g, b, ok := c.RGB(); ok {
		return Color{HasColor: true, R: r, G: g, B: b}
	}
	return Color{HasColor: true, Indexed: true, Index: c.Index()}
}

// trackCursorKeyMode scans freshly-fed bytes for DECCKM (cursor key
// application mode) set/reset sequences, since midterm does not surface
// this as a queryable flag on its own.
func trackCursorKeyMode(mode *bool, data []byte) {
	const setSeq = "\x1b[?1h"
	const resetSeq = "\x1b[?1l"
	for i := 0; i < len(data); i++ {
		if data[i] != 0x1b {
			continue
		}
		if matchesAt(data, i, setSeq) {
			*mode = true
			i += len(setSeq) - 1
			continue
		}
		if matchesAt(data, i, resetSeq) {
			*mode = false
			i += len(resetSeq) - 1
		}
	}
}

func matchesAt(data []byte, i int, seq string) bool {
	if i+len(seq) > len(data) {
		return false
	}
	return string(data[i:i+len(seq)]) == seq
}
