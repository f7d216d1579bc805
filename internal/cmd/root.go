// Package cmd builds the ht cobra command tree: the root command that
// launches a headless terminal host around a shell command, and the
// wait-exit helper subcommand used internally by the PTY wrapper.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ht/internal/command"
	"ht/internal/config"
	"ht/internal/hostlog"
	"ht/internal/host"
	"ht/internal/locale"
)

const version = "0.1.0"

// NewRootCmd builds the root "ht" command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	var size string
	var listen string
	var listenSet bool
	var subscribe string
	var configPath string
	var noColor bool
	var showVersion bool
	var traceEvents bool

	rootCmd := &cobra.Command{
		Use:                   "ht [OPTIONS] [--] [SHELL_COMMAND...]",
		Short:                 "Headless terminal host",
		Long:                  "ht drives a shell command under a PTY and exposes its terminal state and input over stdio and an optional HTTP API.",
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		Args:                  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "ht %s\n", version)
				return nil
			}

			if err := locale.CheckUTF8(); err != nil {
				if noColor {
					fmt.Fprintln(os.Stderr, err)
				} else {
					locale.Diagnose(err)
				}
				os.Exit(1)
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			shellCommand := strings.Join(args, " ")
			if shellCommand == "" {
				shellCommand = os.Getenv("SHELL")
				if shellCommand == "" {
					shellCommand = "/bin/sh"
				}
			}

			cols, rows, err := resolveSize(size, cfg)
			if err != nil {
				return err
			}

			listenAddr := cfg.Listen
			if listenSet {
				listenAddr = normalizeListen(listen)
			}

			filter := command.ParseFilter(subscribe)
			if filter == nil {
				filter = command.ParseFilter(strings.Join(cfg.Subscribe, ","))
			}

			tracePath := ""
			if cfg.TraceEvents {
				tracePath = fmt.Sprintf("/tmp/ht_trace_%d.jsonl", os.Getpid())
			}
			logger := hostlog.New(cfg.TraceEvents, tracePath)
			defer logger.Close()

			code, err := host.Run(context.Background(), host.Options{
				ShellCommand: shellCommand,
				Cols:         cols,
				Rows:         rows,
				Styled:       true,
				Listen:       listenAddr,
				Subscribe:    filter,
				Colored:      !noColor,
				TraceEvents:  traceEvents,
				Log:          logger,
			})
			if err != nil {
				return err
			}
			os.Exit(code)
			return nil
		},
	}

	rootCmd.Flags().StringVar(&size, "size", "", "terminal size as COLSxROWS (default 120x40, or the attached terminal's size)")
	rootCmd.Flags().StringVar(&listen, "listen", "", "start the HTTP adapter, optionally on ADDR (default 127.0.0.1:0)")
	rootCmd.Flags().StringVar(&subscribe, "subscribe", "", "comma-separated event types to emit (default: all)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/ht/config.yaml)")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored diagnostics")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "V", false, "print version and exit")
	rootCmd.Flags().BoolVar(&traceEvents, "trace-events", false, "emit the high-volume commandReceived/outputReceived/emptinessCheck debug trace")
	rootCmd.Flags().Lookup("listen").NoOptDefVal = "127.0.0.1:0"
	// Once a non-flag token appears it, and everything after it, is the
	// shell command — never parsed as ht's own flags (spec.md §6: "the
	// first non-flag argument and all following args").
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.PreRun = func(cmd *cobra.Command, args []string) {
		listenSet = cmd.Flags().Changed("listen")
	}

	rootCmd.AddCommand(newWaitExitCmd())

	return rootCmd
}

func loadConfig(explicitPath string) (config.File, error) {
	if explicitPath == "" {
		return config.Load()
	}
	return config.LoadFrom(explicitPath)
}

// resolveSize parses --size, falling back to the attached terminal's
// current size when stdout is a tty, then to the config file's size, and
// to config.DefaultSize when none of those is set.
func resolveSize(size string, cfg config.File) (int, int, error) {
	if size != "" {
		return parseSize(size)
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 && rows > 0 {
			return cols, rows, nil
		}
	}
	if cfg.Size != "" {
		return parseSize(cfg.Size)
	}
	return config.DefaultSize.Cols, config.DefaultSize.Rows, nil
}

func parseSize(s string) (int, int, error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid --size %q, want COLSxROWS", s)
	}
	cols, err := strconv.Atoi(parts[0])
	if err != nil || cols <= 0 {
		return 0, 0, fmt.Errorf("invalid --size %q: bad cols", s)
	}
	rows, err := strconv.Atoi(parts[1])
	if err != nil || rows <= 0 {
		return 0, 0, fmt.Errorf("invalid --size %q: bad rows", s)
	}
	return cols, rows, nil
}

func normalizeListen(addr string) string {
	if addr == "" {
		return "127.0.0.1:0"
	}
	return addr
}
