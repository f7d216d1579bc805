package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	f, err := Load()
	if err != nil {
		t.Fatalf("Load() with no config file: %v", err)
	}
	if f.Size != "" {
		t.Fatalf("Size = %q, want empty", f.Size)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "ht")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "size: 100x30\nlisten: 127.0.0.1:9000\nsubscribe: [output, exitCode]\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	f, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Size != "100x30" {
		t.Fatalf("Size = %q, want 100x30", f.Size)
	}
	if len(f.Subscribe) != 2 || f.Subscribe[0] != "output" {
		t.Fatalf("Subscribe = %v, want [output exitCode]", f.Subscribe)
	}
}

func TestLoadFromExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("size: 90x20\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	f, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if f.Size != "90x20" {
		t.Fatalf("Size = %q, want 90x20", f.Size)
	}
}
