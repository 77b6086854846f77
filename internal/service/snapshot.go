package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/model"
)

// ZoneSnapshot is the document written to object storage. It holds only
// rows as the server stores them, so every secret inside stays wrapped.
type ZoneSnapshot struct {
	Owner       uuid.UUID                  `json:"owner"`
	Zone        string                     `json:"zone"`
	GenCount    int64                      `json:"gencount"`
	Digest      []byte                     `json:"digest"`
	TakenAt     time.Time                  `json:"taken_at"`
	Keys        []model.CryptoKey          `json:"keys"`
	Metadata    []model.CredentialMetadata `json:"metadata"`
	SyncRecords []model.SyncRecord         `json:"sync_records"`
}

// Snapshotter periodically copies a zone to object storage.
type Snapshotter struct {
	store   model.ReplicaStore
	storage model.SnapshotStorage
	every   int64
	logger  *logger.Logger
}

// NewSnapshotter creates a Snapshotter that fires every `every` gencounts.
// A non-positive interval disables snapshots.
func NewSnapshotter(store model.ReplicaStore, storage model.SnapshotStorage, every int64, logger *logger.Logger) *Snapshotter {
	return &Snapshotter{
		store:   store,
		storage: storage,
		every:   every,
		logger:  logger,
	}
}

// Due reports whether moving from gencount prev to cur crossed a boundary.
func (s *Snapshotter) Due(prev, cur int64) bool {
	if s.every <= 0 || cur <= prev {
		return false
	}
	return prev/s.every != cur/s.every
}

// SnapshotKey is the object key of a zone snapshot at a gencount.
func SnapshotKey(owner uuid.UUID, zone string, genCount int64) string {
	return fmt.Sprintf("%s/%s/%020d.json", owner, zone, genCount)
}

// Take writes the zone's full state, tombstones included. The rows are read
// from one consistent view of the zone.
func (s *Snapshotter) Take(ctx context.Context, owner uuid.UUID, zone string) error {
	snap := ZoneSnapshot{Owner: owner, Zone: zone}
	err := s.store.ReadZone(ctx, owner, zone, func(store model.ReplicaStore) error {
		state, err := store.GetSyncState(ctx, owner, zone)
		if err != nil {
			return fmt.Errorf("failed to get sync state: %w", err)
		}
		snap.GenCount = state.GenCount
		snap.Digest = state.Digest

		all := model.ListOptions{IncludeTombstoned: true}
		if snap.Keys, err = store.ListKeys(ctx, owner, zone, all); err != nil {
			return fmt.Errorf("failed to list keys: %w", err)
		}
		if snap.Metadata, err = store.ListMetadata(ctx, owner, zone, all); err != nil {
			return fmt.Errorf("failed to list metadata: %w", err)
		}
		if snap.SyncRecords, err = store.ListSyncRecords(ctx, owner, zone, all); err != nil {
			return fmt.Errorf("failed to list sync records: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	key := SnapshotKey(owner, zone, snap.GenCount)
	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check snapshot: %w", err)
	}
	if exists {
		s.logger.Debug("Snapshotter: snapshot already stored",
			"key", key)
		return nil
	}

	snap.TakenAt = time.Now().UTC()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return err
	}

	s.logger.Info("Snapshotter: zone snapshot stored",
		"key", key,
		"bytes", len(data))
	return nil
}

// Load reads back the snapshot taken at genCount.
func (s *Snapshotter) Load(ctx context.Context, owner uuid.UUID, zone string, genCount int64) (ZoneSnapshot, error) {
	rc, err := s.storage.Download(ctx, SnapshotKey(owner, zone, genCount))
	if err != nil {
		return ZoneSnapshot{}, err
	}
	defer rc.Close()

	var snap ZoneSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return ZoneSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Owner != owner || snap.Zone != zone {
		return ZoneSnapshot{}, &model.ValidationError{Field: "snapshot", Reason: "belongs to another zone"}
	}
	return snap, nil
}
