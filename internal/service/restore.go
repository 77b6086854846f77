package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/credsync/internal/manifest"
	"github.com/dtroode/credsync/internal/model"
)

// ErrSnapshotsDisabled is returned by Restore when no snapshot storage is set.
var ErrSnapshotsDisabled = errors.New("snapshots are disabled")

// Restore writes the snapshot taken at genCount back into the zone. Rows
// that are already at or past their snapshot gencount are left alone and
// the zone counter never moves back, so restoring over a live zone only
// fills in what is missing.
func (s *Sync) Restore(ctx context.Context, owner uuid.UUID, zone string, genCount int64) (int, error) {
	if s.snapshotter == nil {
		return 0, ErrSnapshotsDisabled
	}
	zone = zoneOrDefault(zone)

	snap, err := s.snapshotter.Load(ctx, owner, zone, genCount)
	if err != nil {
		return 0, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var restored int
	err = s.store.LockZone(ctx, owner, zone, func(store model.ReplicaStore) error {
		n, err := restoreRows(ctx, store, owner, zone, snap)
		if err != nil {
			return err
		}
		restored = n

		if _, err := store.AdvanceGenCount(ctx, owner, zone, snap.GenCount); err != nil {
			return err
		}
		if _, err := store.RefreshManifest(ctx, owner, zone, manifest.Digest); err != nil {
			return fmt.Errorf("failed to refresh manifest: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Sync service: restore failed",
			"owner", owner,
			"zone", zone,
			"gencount", genCount,
			"error", err.Error())
		return 0, err
	}

	s.logger.Info("Sync service: zone restored",
		"owner", owner,
		"zone", zone,
		"gencount", snap.GenCount,
		"rows", restored)
	return restored, nil
}

// stale reports whether a row at gen should replace the stored one.
func stale(err error, storedGen, gen int64) (bool, error) {
	if errors.Is(err, model.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return storedGen < gen, nil
}

func restoreRows(ctx context.Context, store model.ReplicaStore, owner uuid.UUID, zone string, snap ZoneSnapshot) (int, error) {
	var n int

	for _, key := range snap.Keys {
		stored, err := store.GetKey(ctx, owner, zone, key.UUID)
		replace, err := stale(err, stored.GenCount, key.GenCount)
		if err != nil {
			return n, fmt.Errorf("failed to get key: %w", err)
		}
		if !replace {
			continue
		}
		if err := store.UpsertKey(ctx, owner, zone, key); err != nil {
			return n, err
		}
		n++
	}

	for _, meta := range snap.Metadata {
		stored, err := store.GetMetadata(ctx, owner, zone, meta.UUID)
		replace, err := stale(err, stored.GenCount, meta.GenCount)
		if err != nil {
			return n, fmt.Errorf("failed to get metadata: %w", err)
		}
		if !replace {
			continue
		}
		if err := store.UpsertMetadata(ctx, owner, zone, meta); err != nil {
			return n, err
		}
		n++
	}

	for _, rec := range snap.SyncRecords {
		stored, err := store.GetSyncRecord(ctx, owner, zone, rec.UUID)
		replace, err := stale(err, stored.GenCount, rec.GenCount)
		if err != nil {
			return n, fmt.Errorf("failed to get sync record: %w", err)
		}
		if !replace {
			continue
		}
		rec.Zone = zone
		if err := store.UpsertSyncRecord(ctx, owner, rec); err != nil {
			return n, err
		}
		n++
	}

	return n, nil
}
