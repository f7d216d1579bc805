// Package ptydriver forks a child shell command under a PTY and drives
// the bidirectional byte flow between it and the coordinator, including
// the wait-exit FIFO handshake that lets the host outlive the user's
// command long enough to take a final snapshot.
package ptydriver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"

	"ht/internal/command"
	"ht/internal/nbio"
)

const (
	readBufSize       = 128 * 1024
	fifoPollInterval  = 50 * time.Millisecond
	pumpPollInterval  = 2 * time.Millisecond
	quiescenceCushion = 200 * time.Millisecond
	heartbeatInterval = 60 * time.Second
)

// FifoPath derives the completion-handshake FIFO path for the current
// process, e.g. /tmp/ht_fifo_1234.
func FifoPath() string {
	return fmt.Sprintf("/tmp/ht_fifo_%d", os.Getpid())
}

// Driver drives one child shell command under a PTY for the lifetime of
// the host process.
type Driver struct {
	master   *os.File
	cmd      *exec.Cmd
	fifoPath string
}

// Spawn forks shellCommand under a PTY of the given size. The command
// string is wrapped so that, after it exits, the same binary re-invoked
// as `wait-exit` runs before the shell itself exits — this is what lets
// the parent observe completion separately from reaping the process.
func Spawn(shellCommand string, cols, rows int) (*Driver, error) {
	selfPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("ptydriver: resolve self binary: %w", err)
	}
	fifoPath := FifoPath()
	wrapped := fmt.Sprintf("%s ; exit_code=$? ; %s wait-exit %s ; exit $exit_code",
		shellCommand, selfPath, fifoPath)

	cmd := exec.Command("/bin/sh", "-c", wrapped)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, fmt.Errorf("ptydriver: start pty: %w", err)
	}

	return &Driver{master: master, cmd: cmd, fifoPath: fifoPath}, nil
}

// PID is the child process's PID.
func (d *Driver) PID() int {
	return d.cmd.Process.Pid
}

// Resize applies a new PTY window size.
func (d *Driver) Resize(cols, rows int) error {
	return pty.Setsize(d.master, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Channels groups the plumbing Run needs; the coordinator owns the
// receiving/sending ends that aren't passed here.
type Channels struct {
	Input     <-chan []byte
	Output    chan<- []byte
	Pid       chan<- int
	ExitCode  chan<- int
	Commands  chan<- command.Command
}

// Run drives the child to completion and then lingers, emitting
// heartbeats, until ctx is cancelled by the coordinator. It is meant to
// run on its own goroutine; it returns once shutdown is complete.
func (d *Driver) Run(ctx context.Context, ch Channels) {
	select {
	case ch.Pid <- d.cmd.Process.Pid:
	case <-ctx.Done():
		return
	}

	trySendDebug(ch.Commands, fmt.Sprintf("fifoPathGenerated:%s", d.fifoPath))

	fifoCtx, stopFifoWatch := context.WithCancel(ctx)
	defer stopFifoWatch()
	go d.watchFifo(fifoCtx, ch.Commands)

	trySendDebug(ch.Commands, fmt.Sprintf("startingCoordination:%s", d.fifoPath))
	d.pump(ctx, ch.Input, ch.Output)
	trySendDebug(ch.Commands, "outputCaptureComplete")

	_ = d.cmd.Process.Signal(syscall.SIGHUP)

	select {
	case <-time.After(quiescenceCushion):
	case <-ctx.Done():
		return
	}

	trySendDebug(ch.Commands, "coordinationComplete")
	exitCode := reap(d.cmd)
	select {
	case ch.ExitCode <- exitCode:
	case <-ctx.Done():
		return
	}

	d.linger(ctx, ch.Commands)
}

// watchFifo polls for the FIFO's appearance and enqueues a Completed
// command the first time it's seen, then stops — the coordinator is
// responsible for eventually writing "exit" to release the helper.
func (d *Driver) watchFifo(ctx context.Context, commands chan<- command.Command) {
	trySendDebug(commands, "startingFifoMonitoring")
	ticker := time.NewTicker(fifoPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(d.fifoPath); err == nil {
				select {
				case commands <- command.Command{Completed: d.fifoPath}:
				case <-ctx.Done():
				}
				return
			}
		}
	}
}

// pump moves bytes between inputCh and the PTY master until input
// closes, a fatal I/O error occurs, or the master EOFs (which only
// happens once the wait-exit helper itself has terminated).
func (d *Driver) pump(ctx context.Context, inputCh <-chan []byte, outputCh chan<- []byte) {
	_ = nbio.SetNonblock(d.master)

	var pending []byte
	buf := make([]byte, readBufSize)
	poll := time.NewTicker(pumpPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-inputCh:
			if !ok {
				return
			}
			pending = append(pending, data...)
		case <-poll.C:
			if !d.drainReadable(ctx, buf, outputCh) {
				return
			}
			if !d.flushPending(&pending) {
				return
			}
		}
	}
}

// drainReadable reads everything currently available without blocking.
// It returns false when the pump should stop (EOF or fatal error).
func (d *Driver) drainReadable(ctx context.Context, buf []byte, outputCh chan<- []byte) bool {
	for {
		n, err := nbio.Read(d.master, buf)
		if err == nbio.ErrWouldBlock {
			return true
		}
		if err != nil {
			return false
		}
		if n == 0 {
			return false
		}
		out := make([]byte, n)
		copy(out, buf[:n])
		select {
		case outputCh <- out:
		case <-ctx.Done():
			return false
		}
	}
}

// flushPending writes as much of pending as the master will accept
// without blocking, shrinking it in place. Returns false on fatal error.
func (d *Driver) flushPending(pending *[]byte) bool {
	for len(*pending) > 0 {
		n, err := nbio.Write(d.master, *pending)
		if err == nbio.ErrWouldBlock {
			return true
		}
		if err != nil {
			return false
		}
		if n == 0 {
			return false
		}
		*pending = (*pending)[n:]
	}
	return true
}

// reap waits for the child and maps its wait status to an exit code per
// spec.md §4.4: Exited(c) -> c, Signaled(s) -> 128+s, anything else -> -1.
func reap(cmd *exec.Cmd) int {
	err := cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !asExitError(err, &exitErr) {
		return -1
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return -1
	}
	switch {
	case status.Exited():
		return status.ExitStatus()
	case status.Signaled():
		return 128 + int(status.Signal())
	default:
		return -1
	}
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// linger keeps the goroutine (and thus its channel senders) alive after
// the child has been reaped, so late Snapshot commands still work. It
// exits once the coordinator cancels ctx.
func (d *Driver) linger(ctx context.Context, commands chan<- command.Command) {
	trySendDebug(commands, "ptyContinuingForSnapshots")
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			trySendDebug(commands, "ptyExitingDueToMainShutdown")
			return
		case <-ticker.C:
			if !trySendDebug(commands, "ptyHeartbeat") {
				return
			}
		}
	}
}

func trySendDebug(commands chan<- command.Command, msg string) bool {
	select {
	case commands <- command.Command{Debug: msg}:
		return true
	default:
		return false
	}
}
