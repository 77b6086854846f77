package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc/reflection"

	grpcctx "github.com/dtroode/credsync/internal/api/grpc/context"
	"github.com/dtroode/credsync/internal/api/grpc/router"
	grpcServer "github.com/dtroode/credsync/internal/api/grpc/server"
	"github.com/dtroode/credsync/internal/config"
	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/model"
	"github.com/dtroode/credsync/internal/repository/postgres"
	"github.com/dtroode/credsync/internal/server"
	"github.com/dtroode/credsync/internal/service"
	storage "github.com/dtroode/credsync/internal/storage/minio"
	"github.com/dtroode/credsync/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN, postgres.WithMaxConns(cfg.Database.MaxConns))
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db)
	replicaRepo := postgres.NewReplicaRepository(db)
	tokenManager := token.NewJWTWithTTL(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	kdf := model.KDFParams{Time: cfg.KDF.Time, MemKiB: cfg.KDF.MemKiB, Par: cfg.KDF.Par}

	authService := service.NewAuth(userRepo, refreshTokenRepo, tokenManager, kdf, logger)
	tokenService := service.NewTokenService(tokenManager, refreshTokenRepo, logger)
	ctxMgr := grpcctx.NewManager()

	var snapshotter *service.Snapshotter
	if cfg.Storage.Enabled {
		storageClient, err := storage.New(ctx, storage.Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Fatal("failed to initialize snapshot storage", "error", err)
		}
		snapshotter = service.NewSnapshotter(replicaRepo, storageClient, cfg.Snapshot.Every, logger)
	}

	syncService := service.NewSync(replicaRepo, snapshotter, logger)

	r := router.New(syncService, authService, tokenService, ctxMgr, logger)
	gs := r.Register()
	if cfg.GRPC.Reflection {
		reflection.Register(gs)
	}
	grpcSrv := grpcServer.NewGRPCServer(gs, fmt.Sprintf(":%s", cfg.GRPC.Port))

	var sl model.SecurityLayer
	if cfg.GRPC.EnableHTTPS {
		sl = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tokenService.RunPruner(ctx, cfg.JWT.PruneInterval)
	}()
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address(), "tls", cfg.GRPC.EnableHTTPS, "snapshots", snapshotter != nil)
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(grpcSrv)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", grpcSrv.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
