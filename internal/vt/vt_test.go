package vt

import (
	"strings"
	"testing"
)

func TestFeedAndView(t *testing.T) {
	v := New(10, 2)
	v.Feed([]byte("hi"))

	rows := v.View()
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if len(rows[0]) != 10 {
		t.Fatalf("len(rows[0]) = %d, want 10", len(rows[0]))
	}
	if rows[0][0].Char != 'h' || rows[0][1].Char != 'i' {
		t.Fatalf("rows[0][:2] = %q %q, want h i", rows[0][0].Char, rows[0][1].Char)
	}
}

func TestTextView(t *testing.T) {
	v := New(5, 1)
	v.Feed([]byte("ab"))
	if got := v.TextView(); got != "ab" {
		t.Fatalf("TextView() = %q, want %q", got, "ab")
	}
}

func TestResizeUpdatesSize(t *testing.T) {
	v := New(10, 2)
	cols, rows := v.Size()
	if cols != 10 || rows != 2 {
		t.Fatalf("Size() = (%d, %d), want (10, 2)", cols, rows)
	}
	v.Resize(20, 5)
	cols, rows = v.Size()
	if cols != 20 || rows != 5 {
		t.Fatalf("Size() after resize = (%d, %d), want (20, 5)", cols, rows)
	}
}

func TestCursorKeyAppMode(t *testing.T) {
	v := New(10, 2)
	if v.CursorKeyAppMode() {
		t.Fatalf("CursorKeyAppMode() = true before any escape, want false")
	}
	v.Feed([]byte("\x1b[?1h"))
	if !v.CursorKeyAppMode() {
		t.Fatalf("CursorKeyAppMode() = false after DECCKM set, want true")
	}
	v.Feed([]byte("\x1b[?1l"))
	if v.CursorKeyAppMode() {
		t.Fatalf("CursorKeyAppMode() = true after DECCKM reset, want false")
	}
}

func TestPenKeyDistinguishesAttrs(t *testing.T) {
	plain := Pen{}
	bold := Pen{Bold: true}
	if plain.Key() == bold.Key() {
		t.Fatalf("Key() did not distinguish bold from plain pen")
	}
	if len(plain.Attrs()) != 0 {
		t.Fatalf("Attrs() on zero-value pen = %v, want empty", plain.Attrs())
	}
	if attrs := bold.Attrs(); len(attrs) != 1 || attrs[0] != "bold" {
		t.Fatalf("Attrs() on bold pen = %v, want [bold]", attrs)
	}
}

func TestDumpIncludesCursorHomeAndText(t *testing.T) {
	v := New(5, 1)
	v.Feed([]byte("hi"))
	dump := v.Dump()
	if !strings.HasPrefix(dump, "\x1b[H") {
		t.Fatalf("Dump() does not start with cursor-home sequence: %q", dump)
	}
	if !strings.Contains(dump, "hi") {
		t.Fatalf("Dump() = %q, want it to contain fed text", dump)
	}
}
