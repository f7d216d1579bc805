// Package host wires the session, PTY driver, coordinator, and adapters
// together for one run of the `ht` binary. It is the Go counterpart of
// the original program's main(), kept out of cmd/ht so it can be tested
// without going through cobra.
package host

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"ht/internal/api/stdio"
	httpapi "ht/internal/api/http"
	"ht/internal/command"
	"ht/internal/coordinator"
	"ht/internal/hostlog"
	"ht/internal/ptydriver"
	"ht/internal/session"
)

const channelBacklog = 1024

// Options configures one run.
type Options struct {
	ShellCommand string
	Cols, Rows   int
	Styled       bool
	Listen       string // empty disables the HTTP adapter
	Subscribe    command.Filter
	Colored      bool
	TraceEvents  bool // gates the coordinator's commandReceived/outputReceived/emptinessCheck debug trace
	Log          *hostlog.Logger
	Stdin        io.Reader
	Stdout       io.Writer
}

// Run spawns the child, starts the adapters, and runs the coordinator
// loop to completion. It returns the process's exit code: the child's
// own exit code on an orderly run, or a small non-zero code on startup
// failure.
func Run(ctx context.Context, opts Options) (int, error) {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Log == nil {
		opts.Log = hostlog.New(false, "")
	}

	sess := session.New(opts.Cols, opts.Rows)
	if opts.Styled {
		sess.SetStyleMode(session.Styled)
	}

	driver, err := ptydriver.Spawn(opts.ShellCommand, opts.Cols, opts.Rows)
	if err != nil {
		return 1, fmt.Errorf("host: spawn child: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outputCh := make(chan []byte, channelBacklog)
	inputCh := make(chan []byte, channelBacklog)
	pidCh := make(chan int, 1)
	ptyExitCh := make(chan int, 1)
	coordExitCh := make(chan int, 1)
	commandsCh := make(chan command.Command, channelBacklog)
	clientsCh := make(chan chan session.Subscription, 1)
	apiDone := make(chan struct{})

	opts.Log.Log("host", fmt.Sprintf("launching %q in terminal of size %dx%d", opts.ShellCommand, opts.Cols, opts.Rows), "")

	go driver.Run(runCtx, ptydriver.Channels{
		Input:    inputCh,
		Output:   outputCh,
		Pid:      pidCh,
		ExitCode: ptyExitCh,
		Commands: commandsCh,
	})

	// The coordinator consumes its own copy of the exit code (to publish
	// an ExitCode event); this process's own exit status is captured here
	// independently, since only one receiver ever sees a given value sent
	// on a channel.
	var childExitCode atomic.Int64
	childExitCode.Store(-1)
	go func() {
		select {
		case code, ok := <-ptyExitCh:
			if !ok {
				return
			}
			childExitCode.Store(int64(code))
			select {
			case coordExitCh <- code:
			case <-runCtx.Done():
			}
		case <-runCtx.Done():
		}
	}()

	go func() {
		defer close(apiDone)
		if err := stdio.Start(runCtx, opts.Stdin, opts.Stdout, commandsCh, clientsCh, opts.Subscribe); err != nil {
			opts.Log.Log("host", fmt.Sprintf("stdio adapter stopped: %v", err), "")
		}
	}()

	if opts.Listen != "" {
		srv := &httpapi.Server{Commands: commandsCh, Clients: clientsCh, Filter: opts.Subscribe, Colored: opts.Colored}
		httpServer := &http.Server{Addr: opts.Listen, Handler: srv.NewServeMux()}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				opts.Log.Log("host", fmt.Sprintf("http adapter stopped: %v", err), "")
			}
		}()
		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
	}

	coordinator.Run(runCtx, sess, coordinator.Channels{
		Output:   outputCh,
		Input:    inputCh,
		Pid:      pidCh,
		ExitCode: coordExitCh,
		Commands: commandsCh,
		Clients:  clientsCh,
		APIDone:  apiDone,
	}, opts.TraceEvents)

	cancel()

	if code := childExitCode.Load(); code >= 0 {
		return int(code), nil
	}
	return 0, nil
}
