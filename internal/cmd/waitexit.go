package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ht/internal/ptydriver"
)

func newWaitExitCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "wait-exit <fifo_path>",
		Short:  "Block until the host signals completion over a FIFO",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ptydriver.WaitExit(args[0]); err != nil {
				return fmt.Errorf("wait-exit: %w", err)
			}
			return nil
		},
	}
}
