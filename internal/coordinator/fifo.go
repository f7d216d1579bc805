package coordinator

import (
	"fmt"
	"os"
)

type fifoSignalResult int

const (
	fifoWriteOK fifoSignalResult = iota
	fifoMissing
	fifoWriteFailed
)

// writeExitLine writes the literal line the wait-exit helper is blocked
// waiting for. It distinguishes "the FIFO never showed up" from "it
// exists but we couldn't open/write it" since both get a distinct debug
// event (see SPEC_FULL.md §6 / spec.md §7).
func writeExitLine(fifoPath string) fifoSignalResult {
	if _, err := os.Stat(fifoPath); err != nil {
		return fifoMissing
	}
	f, err := os.OpenFile(fifoPath, os.O_WRONLY, 0)
	if err != nil {
		return fifoWriteFailed
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, "exit"); err != nil {
		return fifoWriteFailed
	}
	return fifoWriteOK
}
