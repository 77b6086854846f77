package bolt

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/dtroode/credsync/internal/model"
)

// SetSalt stores the master key derivation salt.
func (s *Store) SetSalt(_ context.Context, salt []byte) error {
	return s.putDevice(DeviceSalt, salt)
}

// GetSalt returns model.ErrNotFound until a salt is stored.
func (s *Store) GetSalt(_ context.Context) ([]byte, error) {
	return s.getDevice(DeviceSalt)
}

// SetVerifier stores the wrapped check key used to validate a passphrase.
func (s *Store) SetVerifier(_ context.Context, verifier []byte) error {
	return s.putDevice(DeviceVerifier, verifier)
}

// GetVerifier returns model.ErrNotFound until a verifier is stored.
func (s *Store) GetVerifier(_ context.Context) ([]byte, error) {
	return s.getDevice(DeviceVerifier)
}

// SetOwner records the account the device replicates for.
func (s *Store) SetOwner(_ context.Context, owner uuid.UUID) error {
	return s.putDevice(DeviceOwner, owner[:])
}

// GetOwner returns the account the device replicates for.
func (s *Store) GetOwner(ctx context.Context) (uuid.UUID, error) {
	data, err := s.getDevice(DeviceOwner)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(data)
}

// MarkPending records a credential that has local changes not yet pushed.
func (s *Store) MarkPending(_ context.Context, owner uuid.UUID, zone string, id uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := zoneBucketRW(tx, PendingBucket, owner, zone)
		if err != nil {
			return err
		}
		return b.Put(id[:], []byte{1})
	})
}

// ClearPending forgets pending state for the given credentials.
func (s *Store) ClearPending(_ context.Context, owner uuid.UUID, zone string, ids ...uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := zoneBucketRO(tx, PendingBucket, owner, zone)
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if err := b.Delete(id[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListPending returns credentials with unpushed local changes.
func (s *Store) ListPending(_ context.Context, owner uuid.UUID, zone string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.View(func(tx *bolt.Tx) error {
		b := zoneBucketRO(tx, PendingBucket, owner, zone)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			id, err := uuid.FromBytes(k)
			if err != nil {
				return fmt.Errorf("bad pending key: %w", err)
			}
			ids = append(ids, id)
			return nil
		})
	})
	return ids, err
}

func (s *Store) putDevice(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(DeviceBucket).Put(key, value)
	})
}

func (s *Store) getDevice(key []byte) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(DeviceBucket).Get(key)
		if v == nil {
			return model.ErrNotFound
		}
		// Make a copy since the slice is only valid during the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}
