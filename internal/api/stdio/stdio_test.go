package stdio

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"ht/internal/command"
	"ht/internal/session"
)

func serveOneClient(t *testing.T, clients <-chan chan session.Subscription, sess *session.Session) {
	t.Helper()
	go func() {
		req := <-clients
		req <- sess.Subscribe()
	}()
}

func TestStartWritesInitThenDecodesCommands(t *testing.T) {
	sess := session.New(10, 2)
	clients := make(chan chan session.Subscription, 1)
	commands := make(chan command.Command, 4)
	serveOneClient(t, clients, sess)

	in := strings.NewReader(`{"type":"takeSnapshot"}` + "\n")
	var out bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Start(ctx, in, &out, commands, clients, nil)
	}()

	select {
	case cmd := <-commands:
		if !cmd.Snapshot {
			t.Fatalf("cmd = %+v, want Snapshot", cmd)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for decoded command")
	}

	// EOF on the reader should push a synthetic Exit.
	select {
	case cmd := <-commands:
		if !cmd.Exit {
			t.Fatalf("cmd after EOF = %+v, want Exit", cmd)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for EOF-triggered exit")
	}

	// Nothing in this unit test plays the coordinator's role of acting on
	// that Exit command, so end the writer loop the same way shutdown
	// normally would: cancel the adapter's context.
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Start did not return")
	}

	if !strings.Contains(out.String(), `"type":"init"`) {
		t.Fatalf("output = %q, want it to contain an init line", out.String())
	}
}

func TestFilterAllowsEverythingWhenEmpty(t *testing.T) {
	var f command.Filter
	if !f.Allows(command.EventOutput) {
		t.Fatalf("empty filter should allow everything")
	}
	f = command.Filter{command.EventOutput: true}
	if f.Allows(command.EventDebug) {
		t.Fatalf("filter should reject types not listed")
	}
}
