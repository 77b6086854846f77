package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dtroode/credsync/internal/model"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the vault unlocked and in sync until interrupted",
		Long: `Runs the background sync loop. The vault locks itself after AGENT_AUTO_LOCK
of inactivity; SIGUSR1 unlocks it from the keyring and syncs immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, err := openVault(ctx)
			if err != nil {
				return err
			}
			defer v.Close()

			log.Info("agent started", "login", cfg.Agent.Login, "zone", v.Zone(), "server", cfg.Agent.ServerAddr)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return v.Run(gctx)
			})
			g.Go(func() error {
				return nudges(gctx, v)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("shutdown complete")
			return nil
		},
	}
}

// nudges runs a sync on SIGUSR1, the live-update hook for external
// notifiers. A locked vault is unlocked from the keyring first.
func nudges(ctx context.Context, v *vault) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
		}

		if v.Locked() {
			if err := v.unlock(ctx); err != nil {
				log.Warn("unlock on nudge failed", "error", err)
				continue
			}
		}
		res, err := v.SyncNow(ctx)
		if err != nil {
			log.Warn("sync on nudge failed", "retryable", model.IsRetryable(err), "error", err)
			continue
		}
		log.Info("sync on nudge done", "skipped", res.Skipped, "pulled", res.Pulled, "pushed", res.Pushed)
	}
}
