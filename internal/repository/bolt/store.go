package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/dtroode/credsync/internal/model"
)

// Bucket names
var (
	KeysBucket        = []byte("keys")
	MetadataBucket    = []byte("metadata")
	SyncRecordsBucket = []byte("sync_records")
	SyncStateBucket   = []byte("sync_state")
	PendingBucket     = []byte("pending")
	DeviceBucket      = []byte("device")
)

// Device keys
var (
	DeviceSalt     = []byte("salt")
	DeviceVerifier = []byte("verifier")
	DeviceOwner    = []byte("owner")
)

var _ model.ReplicaStore = (*Store)(nil)

// Store is a bbolt-backed ReplicaStore.
type Store struct {
	db *bolt.DB
	// zoneMu serializes LockZone and ReadZone callers.
	zoneMu sync.Mutex
}

// Open opens or creates a store file and its bucket structure.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{KeysBucket, MetadataBucket, SyncRecordsBucket, SyncStateBucket, PendingBucket, DeviceBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) UpsertKey(_ context.Context, owner uuid.UUID, zone string, key model.CryptoKey) error {
	return s.put(KeysBucket, owner, zone, key.UUID, key)
}

func (s *Store) UpsertMetadata(_ context.Context, owner uuid.UUID, zone string, meta model.CredentialMetadata) error {
	return s.put(MetadataBucket, owner, zone, meta.UUID, meta)
}

func (s *Store) UpsertSyncRecord(_ context.Context, owner uuid.UUID, record model.SyncRecord) error {
	return s.put(SyncRecordsBucket, owner, record.Zone, record.UUID, record)
}

func (s *Store) GetKey(_ context.Context, owner uuid.UUID, zone string, id uuid.UUID) (model.CryptoKey, error) {
	var key model.CryptoKey
	err := s.get(KeysBucket, owner, zone, id, &key)
	return key, err
}

func (s *Store) GetMetadata(_ context.Context, owner uuid.UUID, zone string, id uuid.UUID) (model.CredentialMetadata, error) {
	var meta model.CredentialMetadata
	err := s.get(MetadataBucket, owner, zone, id, &meta)
	return meta, err
}

func (s *Store) GetSyncRecord(_ context.Context, owner uuid.UUID, zone string, id uuid.UUID) (model.SyncRecord, error) {
	var record model.SyncRecord
	err := s.get(SyncRecordsBucket, owner, zone, id, &record)
	return record, err
}

func (s *Store) ListKeys(_ context.Context, owner uuid.UUID, zone string, opts model.ListOptions) ([]model.CryptoKey, error) {
	var out []model.CryptoKey
	err := s.forEach(KeysBucket, owner, zone, func(v []byte) error {
		var key model.CryptoKey
		if err := json.Unmarshal(v, &key); err != nil {
			return err
		}
		if match(opts, key.GenCount, key.Tombstone) {
			out = append(out, key)
		}
		return nil
	})
	return out, err
}

func (s *Store) ListMetadata(_ context.Context, owner uuid.UUID, zone string, opts model.ListOptions) ([]model.CredentialMetadata, error) {
	var out []model.CredentialMetadata
	err := s.forEach(MetadataBucket, owner, zone, func(v []byte) error {
		var meta model.CredentialMetadata
		if err := json.Unmarshal(v, &meta); err != nil {
			return err
		}
		if match(opts, meta.GenCount, meta.Tombstone) {
			out = append(out, meta)
		}
		return nil
	})
	return out, err
}

func (s *Store) ListSyncRecords(_ context.Context, owner uuid.UUID, zone string, opts model.ListOptions) ([]model.SyncRecord, error) {
	var out []model.SyncRecord
	err := s.forEach(SyncRecordsBucket, owner, zone, func(v []byte) error {
		var record model.SyncRecord
		if err := json.Unmarshal(v, &record); err != nil {
			return err
		}
		if match(opts, record.GenCount, record.Tombstone) {
			out = append(out, record)
		}
		return nil
	})
	return out, err
}

// SearchMetadata matches query case-insensitively against server and account
// of live rows.
func (s *Store) SearchMetadata(ctx context.Context, owner uuid.UUID, zone string, query string) ([]model.CredentialMetadata, error) {
	all, err := s.ListMetadata(ctx, owner, zone, model.ListOptions{})
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []model.CredentialMetadata
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Server), q) || strings.Contains(strings.ToLower(meta.Account), q) {
			out = append(out, meta)
		}
	}
	return out, nil
}

func (s *Store) NextGenCount(_ context.Context, owner uuid.UUID, zone string) (int64, error) {
	var next int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := zoneBucketRW(tx, SyncStateBucket, owner, zone)
		if err != nil {
			return err
		}
		state, err := readState(b, owner, zone)
		if err != nil {
			return err
		}
		state.GenCount++
		next = state.GenCount
		return writeState(b, state)
	})
	return next, err
}

func (s *Store) AdvanceGenCount(_ context.Context, owner uuid.UUID, zone string, floor int64) (int64, error) {
	var gen int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := zoneBucketRW(tx, SyncStateBucket, owner, zone)
		if err != nil {
			return err
		}
		state, err := readState(b, owner, zone)
		if err != nil {
			return err
		}
		state.GenCount = max(state.GenCount, floor)
		gen = state.GenCount
		return writeState(b, state)
	})
	return gen, err
}

func (s *Store) RefreshManifest(_ context.Context, owner uuid.UUID, zone string, digest model.DigestFunc) (model.SyncState, error) {
	var state model.SyncState
	err := s.db.Update(func(tx *bolt.Tx) error {
		var live []uuid.UUID
		if records := zoneBucketRO(tx, SyncRecordsBucket, owner, zone); records != nil {
			err := records.ForEach(func(_, v []byte) error {
				var record model.SyncRecord
				if err := json.Unmarshal(v, &record); err != nil {
					return err
				}
				if !record.Tombstone {
					live = append(live, record.UUID)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		b, err := zoneBucketRW(tx, SyncStateBucket, owner, zone)
		if err != nil {
			return err
		}
		state, err = readState(b, owner, zone)
		if err != nil {
			return err
		}
		state.Digest = digest(live)
		return writeState(b, state)
	})
	return state, err
}

// LockZone serializes fn against other LockZone and ReadZone callers. Each
// write commits on its own, so nothing is rolled back when fn fails.
func (s *Store) LockZone(_ context.Context, _ uuid.UUID, _ string, fn func(store model.ReplicaStore) error) error {
	s.zoneMu.Lock()
	defer s.zoneMu.Unlock()
	return fn(s)
}

func (s *Store) ReadZone(_ context.Context, _ uuid.UUID, _ string, fn func(store model.ReplicaStore) error) error {
	s.zoneMu.Lock()
	defer s.zoneMu.Unlock()
	return fn(s)
}

// GetSyncState returns model.ErrNotFound for a zone that was never written.
func (s *Store) GetSyncState(_ context.Context, owner uuid.UUID, zone string) (model.SyncState, error) {
	var state model.SyncState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := zoneBucketRO(tx, SyncStateBucket, owner, zone)
		if b == nil || b.Get(stateKey) == nil {
			return model.ErrNotFound
		}
		return json.Unmarshal(b.Get(stateKey), &state)
	})
	return state, err
}

// SetWatermark records the last remote gencount this device has pulled.
func (s *Store) SetWatermark(_ context.Context, owner uuid.UUID, zone string, genCount int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := zoneBucketRW(tx, SyncStateBucket, owner, zone)
		if err != nil {
			return err
		}
		state, err := readState(b, owner, zone)
		if err != nil {
			return err
		}
		state.GenCount = genCount
		return writeState(b, state)
	})
}

var stateKey = []byte("state")

func readState(b *bolt.Bucket, owner uuid.UUID, zone string) (model.SyncState, error) {
	state := model.SyncState{Owner: owner, Zone: zone}
	if data := b.Get(stateKey); data != nil {
		if err := json.Unmarshal(data, &state); err != nil {
			return model.SyncState{}, fmt.Errorf("failed to decode sync state: %w", err)
		}
	}
	return state, nil
}

func writeState(b *bolt.Bucket, state model.SyncState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return b.Put(stateKey, data)
}

func match(opts model.ListOptions, genCount int64, tombstone bool) bool {
	if genCount <= opts.Since {
		return false
	}
	return opts.IncludeTombstoned || !tombstone
}

func (s *Store) put(layer []byte, owner uuid.UUID, zone string, id uuid.UUID, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s row: %w", layer, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := zoneBucketRW(tx, layer, owner, zone)
		if err != nil {
			return err
		}
		return b.Put(id[:], data)
	})
}

func (s *Store) get(layer []byte, owner uuid.UUID, zone string, id uuid.UUID, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := zoneBucketRO(tx, layer, owner, zone)
		if b == nil {
			return model.ErrNotFound
		}
		data := b.Get(id[:])
		if data == nil {
			return model.ErrNotFound
		}
		return json.Unmarshal(data, v)
	})
}

func (s *Store) forEach(layer []byte, owner uuid.UUID, zone string, fn func(v []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := zoneBucketRO(tx, layer, owner, zone)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			return fn(v)
		})
	})
}

func zoneBucketRW(tx *bolt.Tx, layer []byte, owner uuid.UUID, zone string) (*bolt.Bucket, error) {
	ob, err := tx.Bucket(layer).CreateBucketIfNotExists(owner[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create owner bucket: %w", err)
	}
	zb, err := ob.CreateBucketIfNotExists([]byte(zone))
	if err != nil {
		return nil, fmt.Errorf("failed to create zone bucket: %w", err)
	}
	return zb, nil
}

func zoneBucketRO(tx *bolt.Tx, layer []byte, owner uuid.UUID, zone string) *bolt.Bucket {
	ob := tx.Bucket(layer).Bucket(owner[:])
	if ob == nil {
		return nil
	}
	return ob.Bucket([]byte(zone))
}
