package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	cmd := &cobra.Command{
		Use:   "msgbar",
		Short: "Unread message summaries for the macOS menubar",
		Long: `msgbar polls local text messages, reddit, slack and gmail for unread
messages and prints SwiftBar/xbar menu markup. Install it as a plugin such as
msgbar.1m so the host runs it every minute.

A desktop notification is shown once per batch of newly unread messages.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, flags)
		},
	}
	cmd.PersistentFlags().StringVar(&flags.config, "config", "", "config file (default $XDG_CONFIG_HOME/msgbar/config.yaml)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "log at debug level")

	cmd.AddCommand(
		newBrowseCmd(&flags),
		newResetCmd(&flags),
		newGmailAuthCmd(&flags),
	)
	return cmd
}
