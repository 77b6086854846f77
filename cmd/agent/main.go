package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dtroode/credsync/internal/config"
	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/ui"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

var (
	cfg *config.AgentConfig
	log *logger.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "credsync",
		Short:         "Encrypted credential vault synced across devices",
		Version:       fmt.Sprintf("%s (%s, %s)", buildVersion, buildCommit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.NewAgentConfig()
			if err != nil {
				return fmt.Errorf("failed to parse config: %w", err)
			}
			log = logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
			return nil
		},
	}

	root.AddCommand(
		newRunCmd(),
		newSyncCmd(),
		newListCmd(),
		newSearchCmd(),
		newShowCmd(),
		newAddCmd(),
		newEditCmd(),
		newRemoveCmd(),
		newImportCmd(),
		newForgetCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.Error.Sprint("error:"), err)
		os.Exit(1)
	}
}
