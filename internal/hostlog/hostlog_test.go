package hostlog

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledLoggerDoesNotCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ht.jsonl")
	l := New(false, path)
	defer l.Close()
	l.Log("coordinator", "hello", "sess-1")

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file to be created when disabled, stat err = %v", err)
	}
}

func TestEnabledLoggerAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ht.jsonl")
	l := New(true, path)
	defer l.Close()

	l.Log("coordinator", "first", "sess-1")
	l.Log("coordinator", "second", "sess-1")

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"message":"first"`) {
		t.Fatalf("lines[0] = %q, want to contain first message", lines[0])
	}
}
