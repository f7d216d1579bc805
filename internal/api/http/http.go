// Package http is the optional embedded HTTP adapter: Server-Sent
// Events and WebSocket transports exposing the same event stream as the
// stdio adapter, plus a plain-text /status endpoint. See SPEC_FULL.md §7.3.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/muesli/termenv"

	"ht/internal/command"
	"ht/internal/session"
)

// Server holds what the HTTP handlers need to reach the coordinator.
type Server struct {
	Commands chan<- command.Command
	Clients  chan<- chan session.Subscription
	Filter   command.Filter
	Colored  bool

	startedAt time.Time
}

// NewServeMux builds the adapter's route table.
func (s *Server) NewServeMux() *http.ServeMux {
	s.startedAt = time.Now()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleSSE)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

func (s *Server) subscribe(ctx context.Context) (session.Subscription, error) {
	req := make(chan session.Subscription, 1)
	select {
	case s.Clients <- req:
	case <-ctx.Done():
		return session.Subscription{}, ctx.Err()
	}
	select {
	case sub := <-req:
		return sub, nil
	case <-ctx.Done():
		return session.Subscription{}, ctx.Err()
	}
}

// handleSSE streams events as text/event-stream, per spec.md §6's "same
// mapping as stdio" requirement.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := s.subscribe(r.Context())
	if err != nil {
		http.Error(w, "subscribe timed out", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	filter := s.connFilter(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if filter.Allows(sub.Init.Type) {
		writeSSE(w, sub.Init)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			if filter.Allows(e.Type) {
				writeSSE(w, e)
				flusher.Flush()
			}
		}
	}
}

// connFilter resolves the per-connection ?subscribe= override, falling
// back to the server-wide Filter when absent.
func (s *Server) connFilter(r *http.Request) command.Filter {
	if q := r.URL.Query().Get("subscribe"); q != "" {
		return command.ParseFilter(q)
	}
	return s.Filter
}

func writeSSE(w http.ResponseWriter, e command.Event) {
	raw, err := e.ToWire()
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", raw)
}

// handleWS streams events over a WebSocket and accepts commands sent
// back over the same connection, using the same wire shapes as stdio.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow() //nolint:errcheck

	ctx := r.Context()
	sub, err := s.subscribe(ctx)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe timed out") //nolint:errcheck
		return
	}
	defer sub.Close()

	connID := uuid.NewString()
	filter := s.connFilter(r)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.wsWriteLoop(ctx, conn, sub, filter)
	}()

	s.wsReadLoop(ctx, conn, connID)
	<-writerDone
}

func (s *Server) wsWriteLoop(ctx context.Context, conn *websocket.Conn, sub session.Subscription, filter command.Filter) {
	if filter.Allows(sub.Init.Type) {
		writeWS(ctx, conn, sub.Init)
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
				if !writeWS(ctx, conn, e) {
					return
				}
			}
		}
	}
}

func writeWS(ctx context.Context, conn *websocket.Conn, e command.Event) bool {
	raw, err := e.ToWire()
	if err != nil {
		return true
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, raw) == nil
}

func (s *Server) wsReadLoop(ctx context.Context, conn *websocket.Conn, connID string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		cmd, err := command.DecodeLine(data)
		if err != nil {
			cmd = command.Command{Debug: fmt.Sprintf("malformedCommand[%s]:%s", connID, err.Error())}
		}
		select {
		case s.Commands <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

// handleStatus reports a one-line human-readable summary (uptime only),
// colored with termenv when Colored is set and the client sends
// Accept: text/x-ansi.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startedAt).Round(time.Second)
	line := fmt.Sprintf("ht running, uptime %s", uptime)
	if s.Colored && r.Header.Get("Accept") == "text/x-ansi" {
		out := termenv.NewOutput(w)
		fmt.Fprintln(w, out.String(line).Foreground(termenv.ANSIGreen))
		return
	}
	fmt.Fprintln(w, line)
}
