// Package coordinator implements the event loop that owns every channel
// in the host: PTY output, PID/exit-code reporting, command ingress,
// subscription requests, and the stdio/HTTP adapter's completion. It is
// the only place that mutates the session.
package coordinator

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"ht/internal/command"
	"ht/internal/session"
)

const (
	emptinessCheckInterval = 10 * time.Millisecond
	quiescenceWindow       = 200 * time.Millisecond
)

// Channels groups everything the coordinator selects over.
type Channels struct {
	Output     <-chan []byte
	Input      chan<- []byte
	Pid        <-chan int
	ExitCode   <-chan int
	Commands   <-chan command.Command
	Clients    <-chan chan session.Subscription
	APIDone    <-chan struct{}
}

// Run drives the event loop to completion. It returns once the loop
// decides to shut down: Exit command after quiescence, PTY output
// channel closed, or command channel closed. When traceEvents is set,
// it additionally emits the high-volume commandReceived/outputReceived/
// emptinessCheck debug trace behind --trace-events (see SPEC_FULL.md §10).
func Run(ctx context.Context, sess *session.Session, ch Channels, traceEvents bool) {
	serving := true
	apiCompleted := false
	lastCommandTime := time.Now()
	var pendingWaitexit string
	havePendingWaitexit := false
	pendingExit := false

	ticker := time.NewTicker(emptinessCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case data, ok := <-ch.Output:
			if !ok {
				sess.EmitDebugEvent("outputChannelClosed")
				return
			}
			if traceEvents {
				sess.EmitDebugEvent(fmt.Sprintf("outputReceived:%dbytes", len(data)))
			}
			sess.Output(decodeLossy(data))
			sess.EmitDebugEvent("outputProcessed")

		case pid, ok := <-ch.Pid:
			if ok {
				sess.EmitPid(pid)
			}

		case code, ok := <-ch.ExitCode:
			if ok {
				// The PTY driver enqueues all output before its exit code,
				// so publish whatever output is still buffered first.
				for len(ch.Output) > 0 {
					data := <-ch.Output
					if traceEvents {
						sess.EmitDebugEvent(fmt.Sprintf("outputReceived:%dbytes", len(data)))
					}
					sess.Output(decodeLossy(data))
					sess.EmitDebugEvent("outputProcessed")
				}
				sess.EmitExitCode(code)
			}

		case cmd, ok := <-ch.Commands:
			lastCommandTime = time.Now()
			if !ok {
				sess.EmitDebugEvent("commandChannelClosed")
				return
			}
			if traceEvents {
				sess.EmitDebugEvent(fmt.Sprintf("commandReceived:%+v", cmd))
			}
			pendingWaitexit, havePendingWaitexit, pendingExit = dispatch(sess, ch.Input, cmd, pendingWaitexit, havePendingWaitexit, pendingExit)

		case req, ok := <-ch.Clients:
			if !serving {
				continue
			}
			if !ok {
				serving = false
				continue
			}
			sub := sess.Subscribe()
			req <- sub

		case <-ch.APIDone:
			if !apiCompleted {
				apiCompleted = true
				sess.EmitDebugEvent("apiHandleClosed")
			}

		case <-ticker.C:
			idle := time.Since(lastCommandTime)
			if traceEvents {
				sess.EmitDebugEvent(fmt.Sprintf("emptinessCheck:%dms", idle.Milliseconds()))
			}
			if idle < quiescenceWindow {
				continue
			}
			if havePendingWaitexit {
				signalWaitexit(sess, pendingWaitexit)
				havePendingWaitexit = false
				pendingWaitexit = ""
			}
			if pendingExit {
				sess.EmitDebugEvent("exitAfterQuiescence")
				return
			}
		}
	}
}

// decodeLossy mirrors Rust's String::from_utf8_lossy: invalid sequences
// become U+FFFD rather than aborting the stream.
func decodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	buf := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		buf = append(buf, r)
		b = b[size:]
	}
	return string(buf)
}

func dispatch(sess *session.Session, input chan<- []byte, cmd command.Command, pendingWaitexit string, havePendingWaitexit, pendingExit bool) (string, bool, bool) {
	switch {
	case cmd.Input != nil:
		appMode := sess.CursorKeyAppMode()
		var out []byte
		for _, seq := range cmd.Input {
			out = append(out, seq.Encode(appMode)...)
		}
		input <- out

	case cmd.Snapshot:
		sess.EmitDebugEvent("snapshotCommandReceived")
		sess.Snapshot()
		sess.EmitDebugEvent("snapshotCommandCompleted")

	case cmd.Resize != nil:
		sess.Resize(cmd.Resize.Cols, cmd.Resize.Rows)

	case cmd.Debug != "":
		sess.EmitDebugEvent(cmd.Debug)

	case cmd.Completed != "":
		sess.EmitCommandCompleted()
		pendingWaitexit = cmd.Completed
		havePendingWaitexit = true
		sess.EmitDebugEvent("commandCompletedReceived")

	case cmd.Exit:
		sess.EmitDebugEvent("exitCommandReceived")
		pendingExit = true
		sess.EmitDebugEvent("exitCommandQueued")
	}
	return pendingWaitexit, havePendingWaitexit, pendingExit
}

func signalWaitexit(sess *session.Session, fifoPath string) {
	sess.EmitDebugEvent("signalingWaitexit")
	switch writeExitLine(fifoPath) {
	case fifoMissing:
		sess.EmitDebugEvent("fifoMissingForExit")
	case fifoWriteFailed:
		sess.EmitDebugEvent("exitSignalFailed")
	case fifoWriteOK:
		sess.EmitDebugEvent("exitSignalSent")
	}
}
