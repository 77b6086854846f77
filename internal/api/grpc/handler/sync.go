package handler

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/credsync/internal/api/grpc/wire"
	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/model"
)

// SyncService defines the replication operations served to devices.
type SyncService interface {
	Push(ctx context.Context, owner uuid.UUID, req model.PushRequest) (model.PushResult, error)
	Pull(ctx context.Context, owner uuid.UUID, req model.PullRequest) (model.PullResult, error)
	Manifest(ctx context.Context, owner uuid.UUID, zone string) (model.SyncState, error)
}

// Sync handles credsync.v1.Sync.
type Sync struct {
	wire.UnimplementedSyncServer
	syncService    SyncService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewSync creates a new Sync handler.
func NewSync(syncService SyncService, contextManager model.ContextManager, logger *logger.Logger) *Sync {
	return &Sync{
		syncService:    syncService,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Push stores a batch of changed rows for the caller.
func (h *Sync) Push(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	owner, err := h.owner(ctx)
	if err != nil {
		return nil, err
	}

	var req wire.PushRequest
	if err := wire.Decode(in, &req); err != nil {
		h.logger.Info("Sync handler: rejected push",
			"owner", owner,
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Debug("Sync handler: processing push",
		"owner", owner,
		"zone", req.Zone)

	result, err := h.syncService.Push(ctx, owner, req.Model())
	if err != nil {
		h.logger.Error("Sync handler: push failed",
			"owner", owner,
			"zone", req.Zone,
			"error", err.Error())
		return nil, handleError(err)
	}

	return wire.Encode(wire.PushResponseFromModel(result))
}

// Pull returns rows changed after the requested gencount.
func (h *Sync) Pull(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	owner, err := h.owner(ctx)
	if err != nil {
		return nil, err
	}

	var req wire.PullRequest
	if err := wire.Decode(in, &req); err != nil {
		return nil, handleError(err)
	}

	result, err := h.syncService.Pull(ctx, owner, model.PullRequest{
		Zone:              req.Zone,
		SinceGenCount:     req.SinceGenCount,
		IncludeTombstoned: req.IncludeTombstoned,
	})
	if err != nil {
		h.logger.Error("Sync handler: pull failed",
			"owner", owner,
			"zone", req.Zone,
			"error", err.Error())
		return nil, handleError(err)
	}

	return wire.Encode(wire.PullResponseFromModel(result))
}

// Manifest returns the zone's gencount and digest.
func (h *Sync) Manifest(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	owner, err := h.owner(ctx)
	if err != nil {
		return nil, err
	}

	var req wire.ManifestRequest
	if err := wire.Decode(in, &req); err != nil {
		return nil, handleError(err)
	}

	state, err := h.syncService.Manifest(ctx, owner, req.Zone)
	if err != nil {
		h.logger.Error("Sync handler: manifest failed",
			"owner", owner,
			"zone", req.Zone,
			"error", err.Error())
		return nil, handleError(err)
	}

	return wire.Encode(wire.ManifestResponse{
		Zone:     state.Zone,
		GenCount: state.GenCount,
		Digest:   state.Digest,
	})
}

func (h *Sync) owner(ctx context.Context) (uuid.UUID, error) {
	owner, ok := h.contextManager.Owner(ctx)
	if !ok {
		return uuid.Nil, status.Error(codes.Unauthenticated, "user id not found in context")
	}
	return owner, nil
}
