package coordinator

import (
	"context"
	"strings"
	"testing"
	"time"

	"ht/internal/command"
	"ht/internal/session"
)

func newTestChannels() (Channels, chan []byte, chan []byte, chan int, chan int, chan command.Command, chan chan session.Subscription, chan struct{}) {
	output := make(chan []byte, 16)
	input := make(chan []byte, 16)
	pid := make(chan int, 1)
	exitCode := make(chan int, 1)
	commands := make(chan command.Command, 16)
	clients := make(chan chan session.Subscription, 1)
	apiDone := make(chan struct{})

	return Channels{
		Output:   output,
		Input:    input,
		Pid:      pid,
		ExitCode: exitCode,
		Commands: commands,
		Clients:  clients,
		APIDone:  apiDone,
	}, output, input, pid, exitCode, commands, clients, apiDone
}

func TestQuiescentExitWaitsForBufferedCommands(t *testing.T) {
	sess := session.New(20, 5)
	sub := sess.Subscribe()
	defer sub.Close()

	ch, _, _, _, _, commands, _, _ := newTestChannels()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		Run(ctx, sess, ch, false)
		close(done)
	}()

	commands <- command.Command{Snapshot: true}
	commands <- command.Command{Exit: true}

	var sawSnapshot bool
	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case e := <-sub.Events:
			if e.Type == command.EventSnapshot {
				sawSnapshot = true
			}
		case <-done:
			break loop
		case <-timeout:
			t.Fatalf("coordinator did not shut down in time")
		}
	}

	if !sawSnapshot {
		t.Fatalf("coordinator exited without emitting the buffered snapshot")
	}
}

func TestCommandChannelCloseEndsLoop(t *testing.T) {
	sess := session.New(10, 2)
	ch, _, _, _, _, commands, _, _ := newTestChannels()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		Run(ctx, sess, ch, false)
		close(done)
	}()

	close(commands)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("coordinator did not exit after command channel closed")
	}
}

func TestOutputChannelCloseEndsLoop(t *testing.T) {
	sess := session.New(10, 2)
	ch, output, _, _, _, _, _, _ := newTestChannels()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		Run(ctx, sess, ch, false)
		close(done)
	}()

	close(output)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("coordinator did not exit after output channel closed")
	}
}

func TestOutputPrecedesExitCode(t *testing.T) {
	sess := session.New(10, 2)
	sub := sess.Subscribe()
	defer sub.Close()

	ch, output, _, _, exitCode, _, _, _ := newTestChannels()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Run(ctx, sess, ch, false)

	output <- []byte("hello")
	exitCode <- 0

	var seenOutput, seenExitBeforeOutput bool
	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case e := <-sub.Events:
			switch e.Type {
			case command.EventOutput:
				seenOutput = true
			case command.EventExitCode:
				if !seenOutput {
					seenExitBeforeOutput = true
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for events")
		}
	}
	if seenExitBeforeOutput {
		t.Fatalf("ExitCode observed before Output")
	}
}

func TestTraceEventsGateOutputReceivedDebugEvent(t *testing.T) {
	sess := session.New(10, 2)
	sub := sess.Subscribe()
	defer sub.Close()

	ch, output, _, _, _, _, _, _ := newTestChannels()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Run(ctx, sess, ch, true)

	output <- []byte("hi")

	var sawOutputReceived bool
	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case e := <-sub.Events:
			if e.Type == command.EventDebug && strings.HasPrefix(e.Message, "outputReceived:") {
				sawOutputReceived = true
			}
		case <-timeout:
			t.Fatalf("timed out waiting for debug events")
		}
	}
	if !sawOutputReceived {
		t.Fatalf("traceEvents=true did not emit an outputReceived debug event")
	}
}

func TestTraceEventsOffSuppressesOutputReceivedDebugEvent(t *testing.T) {
	sess := session.New(10, 2)
	sub := sess.Subscribe()
	defer sub.Close()

	ch, output, _, _, _, _, _, _ := newTestChannels()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Run(ctx, sess, ch, false)

	output <- []byte("hi")

	timeout := time.After(200 * time.Millisecond)
	for {
		select {
		case e := <-sub.Events:
			if e.Type == command.EventDebug && strings.HasPrefix(e.Message, "outputReceived:") {
				t.Fatalf("traceEvents=false still emitted an outputReceived debug event")
			}
		case <-timeout:
			return
		}
	}
}
