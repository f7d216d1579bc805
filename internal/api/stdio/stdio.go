// Package stdio is the line-delimited JSON adapter described in
// spec.md §6: it decodes commands from an input stream and encodes a
// subscription's events back out, one per line.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"ht/internal/command"
	"ht/internal/session"
)

// Start runs the stdio adapter until ctx is cancelled or the
// subscription's event stream closes; exhausting r only stops the
// command reader (after it queues a final Exit), not the event writer.
// It subscribes to the session (via clients) before doing anything
// else, so no events are missed between subscribe and the first read.
func Start(ctx context.Context, r io.Reader, w io.Writer, commands chan<- command.Command, clients chan<- chan session.Subscription, filter command.Filter) error {
	req := make(chan session.Subscription, 1)
	select {
	case clients <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	var sub session.Subscription
	select {
	case sub = <-req:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer sub.Close()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writeEvents(ctx, w, sub, filter)
	}()

	readCommands(ctx, r, commands)

	<-writerDone
	return nil
}

func writeEvents(ctx context.Context, w io.Writer, sub session.Subscription, filter command.Filter) {
	enc := json.NewEncoder(w)
	if filter.Allows(sub.Init.Type) {
		writeEvent(enc, sub.Init)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			if filter.Allows(e.Type) {
				writeEvent(enc, e)
			}
		}
	}
}

func writeEvent(enc *json.Encoder, e command.Event) {
	raw, err := e.ToWire()
	if err != nil {
		return
	}
	var v json.RawMessage = raw
	_ = enc.Encode(v)
}

// readCommands decodes one command per line until r hits EOF or ctx is
// cancelled, sending each successfully-decoded command to commands and
// a Debug command for anything malformed. On EOF it pushes a synthetic
// Exit so the host still shuts down quiescently — there is no portable
// Go equivalent of dropping the last clone of a channel's sender to
// signal closure when another goroutine (the PTY driver) also holds a
// send handle on the same channel.
func readCommands(ctx context.Context, r io.Reader, commands chan<- command.Command) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cmd, err := command.DecodeLine(line)
		if err != nil {
			cmd = command.Command{Debug: fmt.Sprintf("malformedCommand:%s", err.Error())}
		}
		select {
		case commands <- cmd:
		case <-ctx.Done():
			return
		}
	}
	select {
	case commands <- command.Command{Exit: true}:
	case <-ctx.Done():
	}
}
