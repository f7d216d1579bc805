package ptydriver

import (
	"context"
	"os"
	"testing"
	"time"

	"ht/internal/command"
)

// TestMain handles the `wait-exit` re-invocation that Spawn's wrapper
// makes of os.Executable(), which under `go test` is this test binary.
// Nothing in these tests plays the coordinator's part of writing "exit"
// to the FIFO, so the helper returns at once and the child shell exits.
func TestMain(m *testing.M) {
	if len(os.Args) >= 2 && os.Args[1] == "wait-exit" {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestSpawnEchoReachesOutput(t *testing.T) {
	d, err := Spawn("echo hello", 80, 24)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	inputCh := make(chan []byte, 1)
	outputCh := make(chan []byte, 64)
	pidCh := make(chan int, 1)
	exitCodeCh := make(chan int, 1)
	commandsCh := make(chan command.Command, 1024)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Run(ctx, Channels{Input: inputCh, Output: outputCh, Pid: pidCh, ExitCode: exitCodeCh, Commands: commandsCh})
		close(done)
	}()

	select {
	case pid := <-pidCh:
		if pid <= 0 {
			t.Fatalf("pid = %d, want > 0", pid)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for pid")
	}

	var gotOutput bool
	deadline := time.After(3 * time.Second)
	for !gotOutput {
		select {
		case b := <-outputCh:
			if len(b) > 0 {
				gotOutput = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for child output")
		}
	}

	select {
	case code := <-exitCodeCh:
		if code != 0 {
			t.Fatalf("exit code = %d, want 0", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for exit code")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
