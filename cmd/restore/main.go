package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dtroode/credsync/internal/config"
	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/repository/postgres"
	"github.com/dtroode/credsync/internal/service"
	storage "github.com/dtroode/credsync/internal/storage/minio"
)

type restoreFlags struct {
	owner    string
	zone     string
	genCount int64
}

func newRestoreCmd() *cobra.Command {
	var f restoreFlags

	cmd := &cobra.Command{
		Use:           "credsync-restore",
		Short:         "Write a stored zone snapshot back into the server database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := uuid.Parse(f.owner)
			if err != nil {
				return fmt.Errorf("invalid --owner: %w", err)
			}
			if f.genCount <= 0 {
				return errors.New("--gencount must be positive")
			}
			return restore(cmd.Context(), owner, f.zone, f.genCount)
		},
	}

	cmd.Flags().StringVar(&f.owner, "owner", "", "owner uuid")
	cmd.Flags().StringVar(&f.zone, "zone", "default", "zone name")
	cmd.Flags().Int64Var(&f.genCount, "gencount", 0, "gencount the snapshot was taken at")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("gencount")
	return cmd
}

func restore(ctx context.Context, owner uuid.UUID, zone string, genCount int64) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})

	if !cfg.Storage.Enabled {
		return service.ErrSnapshotsDisabled
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN, postgres.WithMaxConns(cfg.Database.MaxConns))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer db.Close()

	storageClient, err := storage.New(ctx, storage.Options{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize snapshot storage: %w", err)
	}

	replicaRepo := postgres.NewReplicaRepository(db)
	snapshotter := service.NewSnapshotter(replicaRepo, storageClient, cfg.Snapshot.Every, log)
	sync := service.NewSync(replicaRepo, snapshotter, log)

	n, err := sync.Restore(ctx, owner, zone, genCount)
	if err != nil {
		return err
	}
	fmt.Printf("restored %d rows into %s/%s\n", n, owner, zone)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	if err := newRestoreCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
