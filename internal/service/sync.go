package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/manifest"
	"github.com/dtroode/credsync/internal/model"
)

// Sync is the server side of the replication protocol. It assigns
// gencounts, persists pushed rows and answers pulls and manifest checks.
type Sync struct {
	store       model.ReplicaStore
	snapshotter *Snapshotter
	logger      *logger.Logger
}

// NewSync creates a Sync service. snapshotter may be nil.
func NewSync(store model.ReplicaStore, snapshotter *Snapshotter, logger *logger.Logger) *Sync {
	return &Sync{
		store:       store,
		snapshotter: snapshotter,
		logger:      logger,
	}
}

func zoneOrDefault(zone string) string {
	if zone == "" {
		return model.DefaultZone
	}
	return zone
}

// Push persists a batch in layer order keys, metadata, sync records. Every
// item gets a fresh gencount. The first failing item aborts the batch with a
// *model.PartialBatchFailure; items before it stay persisted.
func (s *Sync) Push(ctx context.Context, owner uuid.UUID, req model.PushRequest) (model.PushResult, error) {
	zone := zoneOrDefault(req.Zone)

	s.logger.Debug("Sync service: push",
		"owner", owner,
		"zone", zone,
		"keys", len(req.Keys),
		"metadata", len(req.Metadata),
		"sync_records", len(req.SyncRecords))

	var (
		before   int64
		result   model.PushResult
		batchErr error
	)
	err := s.store.LockZone(ctx, owner, zone, func(store model.ReplicaStore) error {
		var err error
		before, err = currentGenCount(ctx, store, owner, zone)
		if err != nil {
			return err
		}

		batchErr = pushItems(ctx, store, owner, zone, req, &result)
		if result.ItemsProcessed == 0 {
			result.GenCount = before
			return nil
		}

		state, err := store.RefreshManifest(ctx, owner, zone, manifest.Digest)
		if err != nil {
			return fmt.Errorf("failed to refresh manifest: %w", err)
		}
		result.GenCount = state.GenCount
		return nil
	})
	if err != nil {
		s.logger.Error("Sync service: push failed",
			"owner", owner,
			"zone", zone,
			"error", err.Error())
		return model.PushResult{}, err
	}

	if batchErr != nil {
		s.logger.Warn("Sync service: push aborted",
			"owner", owner,
			"zone", zone,
			"processed", result.ItemsProcessed,
			"error", batchErr.Error())
		return result, batchErr
	}

	if s.snapshotter != nil && s.snapshotter.Due(before, result.GenCount) {
		if err := s.snapshotter.Take(ctx, owner, zone); err != nil {
			s.logger.Error("Sync service: failed to snapshot zone",
				"owner", owner,
				"zone", zone,
				"error", err.Error())
		}
	}

	s.logger.Info("Sync service: push completed",
		"owner", owner,
		"zone", zone,
		"items", result.ItemsProcessed,
		"gencount", result.GenCount)

	return result, nil
}

func pushItems(ctx context.Context, store model.ReplicaStore, owner uuid.UUID, zone string, req model.PushRequest, result *model.PushResult) error {
	fail := func(layer model.Layer, id uuid.UUID, index int, err error) error {
		return &model.PartialBatchFailure{
			Layer:     layer,
			UUID:      id,
			Index:     index,
			Processed: result.ItemsProcessed,
			Assigned:  append([]model.Assignment(nil), result.Assigned...),
			Err:       err,
		}
	}
	assign := func(layer model.Layer, id uuid.UUID, gen int64) {
		result.Assigned = append(result.Assigned, model.Assignment{Layer: layer, UUID: id, GenCount: gen})
		result.ItemsProcessed++
	}

	for i, key := range req.Keys {
		gen, err := store.NextGenCount(ctx, owner, zone)
		if err != nil {
			return fail(model.LayerKeys, key.UUID, i, err)
		}
		key.GenCount = gen
		if key.AccessGroup == "" {
			key.AccessGroup = model.DefaultAccessGroup
		}
		if err := store.UpsertKey(ctx, owner, zone, key); err != nil {
			return fail(model.LayerKeys, key.UUID, i, err)
		}
		assign(model.LayerKeys, key.UUID, gen)
	}

	for i, meta := range req.Metadata {
		gen, err := store.NextGenCount(ctx, owner, zone)
		if err != nil {
			return fail(model.LayerMetadata, meta.UUID, i, err)
		}
		meta.GenCount = gen
		applyMetadataDefaults(&meta)
		if err := store.UpsertMetadata(ctx, owner, zone, meta); err != nil {
			return fail(model.LayerMetadata, meta.UUID, i, err)
		}
		assign(model.LayerMetadata, meta.UUID, gen)
	}

	for i, rec := range req.SyncRecords {
		gen, err := store.NextGenCount(ctx, owner, zone)
		if err != nil {
			return fail(model.LayerSyncRecords, rec.UUID, i, err)
		}
		rec.Zone = zone
		rec.GenCount = gen
		if rec.EncVersion == 0 {
			rec.EncVersion = model.DefaultEncVersion
		}
		if rec.ContextID == "" {
			rec.ContextID = model.DefaultContextID
		}
		if err := store.UpsertSyncRecord(ctx, owner, rec); err != nil {
			return fail(model.LayerSyncRecords, rec.UUID, i, err)
		}
		assign(model.LayerSyncRecords, rec.UUID, gen)
	}

	return nil
}

func applyMetadataDefaults(meta *model.CredentialMetadata) {
	if meta.Protocol == 0 {
		meta.Protocol = model.DefaultProtocol
	}
	if meta.Port == 0 {
		meta.Port = model.DefaultPort
	}
	if meta.AccessGroup == "" {
		meta.AccessGroup = model.DefaultAccessGroup
	}
}

// Pull returns every row of the zone with gencount greater than
// req.SinceGenCount, together with the zone's current gencount.
func (s *Sync) Pull(ctx context.Context, owner uuid.UUID, req model.PullRequest) (model.PullResult, error) {
	if req.SinceGenCount < 0 {
		return model.PullResult{}, &model.ValidationError{Field: "since_gencount", Reason: "must not be negative"}
	}
	zone := zoneOrDefault(req.Zone)
	opts := model.ListOptions{Since: req.SinceGenCount, IncludeTombstoned: req.IncludeTombstoned}

	var result model.PullResult
	err := s.store.ReadZone(ctx, owner, zone, func(store model.ReplicaStore) error {
		gen, err := currentGenCount(ctx, store, owner, zone)
		if err != nil {
			return err
		}

		keys, err := store.ListKeys(ctx, owner, zone, opts)
		if err != nil {
			return fmt.Errorf("failed to list keys: %w", err)
		}
		metadata, err := store.ListMetadata(ctx, owner, zone, opts)
		if err != nil {
			return fmt.Errorf("failed to list metadata: %w", err)
		}
		records, err := store.ListSyncRecords(ctx, owner, zone, opts)
		if err != nil {
			return fmt.Errorf("failed to list sync records: %w", err)
		}

		result = model.PullResult{
			Keys:        keys,
			Metadata:    metadata,
			SyncRecords: records,
			GenCount:    gen,
		}
		return nil
	})
	if err != nil {
		return model.PullResult{}, err
	}

	s.logger.Debug("Sync service: pull",
		"owner", owner,
		"zone", zone,
		"since", req.SinceGenCount,
		"items", result.Len(),
		"gencount", result.GenCount)

	return result, nil
}

// Manifest returns the zone's gencount and digest. A zone that was never
// pushed to reports gencount 0 and the digest of the empty set.
func (s *Sync) Manifest(ctx context.Context, owner uuid.UUID, zone string) (model.SyncState, error) {
	zone = zoneOrDefault(zone)

	state, err := s.store.GetSyncState(ctx, owner, zone)
	if errors.Is(err, model.ErrNotFound) {
		return model.SyncState{Owner: owner, Zone: zone, Digest: manifest.Digest(nil)}, nil
	}
	if err != nil {
		return model.SyncState{}, fmt.Errorf("failed to get sync state: %w", err)
	}
	if len(state.Digest) == 0 {
		state.Digest = manifest.Digest(nil)
	}
	return state, nil
}

func currentGenCount(ctx context.Context, store model.ReplicaStore, owner uuid.UUID, zone string) (int64, error) {
	state, err := store.GetSyncState(ctx, owner, zone)
	if errors.Is(err, model.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get sync state: %w", err)
	}
	return state.GenCount, nil
}
