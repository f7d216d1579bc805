package ptydriver

import (
	"bufio"
	"os"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

// WaitExit implements the `ht wait-exit <fifo_path>` helper subcommand:
// it creates the FIFO (treating "already exists" as benign, per
// spec.md §9's flagged open question), then blocks reading lines from it
// until one trims to "exit".
//
// An advisory flock alongside the FIFO guards against two helper
// processes racing to mkfifo the same path; it is released automatically
// when this process exits.
func WaitExit(fifoPath string) error {
	lock := flock.New(fifoPath + ".lock")
	_ = lock.Lock() // best-effort; a failed lock doesn't block the handshake
	defer lock.Unlock() //nolint:errcheck

	// Any mkfifo error, not just EEXIST, is treated as "already there" and
	// we proceed to open it for reading: the FIFO's path is derived from
	// the host PID, so a second helper racing to create the same path is
	// the only realistic failure, and it is itself benign.
	_ = syscall.Mkfifo(fifoPath, 0o600)

	f, err := os.Open(fifoPath)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "exit" {
			break
		}
	}
	return nil
}
