package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/credsync/internal/manifest"
	"github.com/dtroode/credsync/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "replica.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	owner := uuid.New()

	key := model.CryptoKey{UUID: uuid.New(), KeyClass: model.KeyClassSymmetric, KeyType: model.KeyTypeAES256GCM, Data: []byte("wrapped"), GenCount: 1}
	require.NoError(t, s.UpsertKey(ctx, owner, "z", key))

	got, err := s.GetKey(ctx, owner, "z", key.UUID)
	require.NoError(t, err)
	assert.Equal(t, key.Data, got.Data)
	assert.Equal(t, key.KeyType, got.KeyType)

	key.Data = []byte("rewrapped")
	key.GenCount = 4
	require.NoError(t, s.UpsertKey(ctx, owner, "z", key))
	got, err = s.GetKey(ctx, owner, "z", key.UUID)
	require.NoError(t, err)
	assert.Equal(t, []byte("rewrapped"), got.Data)
	assert.Equal(t, int64(4), got.GenCount)

	_, err = s.GetKey(ctx, owner, "other", key.UUID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.GetKey(ctx, uuid.New(), "z", key.UUID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStore_ListChangedSince(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	owner := uuid.New()

	for i, tomb := range []bool{false, false, true, false} {
		rec := model.SyncRecord{Zone: "z", UUID: uuid.New(), GenCount: int64(i + 1), Tombstone: tomb}
		require.NoError(t, s.UpsertSyncRecord(ctx, owner, rec))
	}

	all, err := s.ListSyncRecords(ctx, owner, "z", model.ListOptions{IncludeTombstoned: true})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	live, err := s.ListSyncRecords(ctx, owner, "z", model.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, live, 3)

	since, err := s.ListSyncRecords(ctx, owner, "z", model.ListOptions{Since: 2, IncludeTombstoned: true})
	require.NoError(t, err)
	assert.Len(t, since, 2)
	for _, r := range since {
		assert.Greater(t, r.GenCount, int64(2))
	}
}

func TestStore_SearchMetadata(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	owner := uuid.New()

	rows := []model.CredentialMetadata{
		{UUID: uuid.New(), Server: "github.com", Account: "alice", GenCount: 1},
		{UUID: uuid.New(), Server: "gitlab.com", Account: "bob", GenCount: 2},
		{UUID: uuid.New(), Server: "example.org", Account: "GitUser", GenCount: 3},
		{UUID: uuid.New(), Server: "github.io", Account: "carol", GenCount: 4, Tombstone: true},
	}
	for _, r := range rows {
		require.NoError(t, s.UpsertMetadata(ctx, owner, "z", r))
	}

	got, err := s.SearchMetadata(ctx, owner, "z", "GIT")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = s.SearchMetadata(ctx, owner, "z", "bob")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gitlab.com", got[0].Server)
}

func TestStore_GenCountAndManifest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	owner := uuid.New()

	_, err := s.GetSyncState(ctx, owner, "z")
	assert.ErrorIs(t, err, model.ErrNotFound)

	for want := int64(1); want <= 3; want++ {
		got, err := s.NextGenCount(ctx, owner, "z")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	other, err := s.NextGenCount(ctx, owner, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	a, b := uuid.New(), uuid.New()
	require.NoError(t, s.UpsertSyncRecord(ctx, owner, model.SyncRecord{Zone: "z", UUID: a, GenCount: 1}))
	require.NoError(t, s.UpsertSyncRecord(ctx, owner, model.SyncRecord{Zone: "z", UUID: b, GenCount: 2, Tombstone: true}))

	state, err := s.RefreshManifest(ctx, owner, "z", manifest.Digest)
	require.NoError(t, err)
	assert.Equal(t, int64(3), state.GenCount)
	assert.Equal(t, manifest.Digest([]uuid.UUID{a}), state.Digest)

	stored, err := s.GetSyncState(ctx, owner, "z")
	require.NoError(t, err)
	assert.Equal(t, state, stored)
}

func TestStore_DeviceState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	owner := uuid.New()

	_, err := s.GetSalt(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)

	salt := []byte("test-salt-32-bytes-long-exactly!")
	require.NoError(t, s.SetSalt(ctx, salt))
	got, err := s.GetSalt(ctx)
	require.NoError(t, err)
	assert.Equal(t, salt, got)

	require.NoError(t, s.SetOwner(ctx, owner))
	gotOwner, err := s.GetOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, owner, gotOwner)

	require.NoError(t, s.SetWatermark(ctx, owner, "z", 42))
	state, err := s.GetSyncState(ctx, owner, "z")
	require.NoError(t, err)
	assert.Equal(t, int64(42), state.GenCount)

	id1, id2 := uuid.New(), uuid.New()
	require.NoError(t, s.MarkPending(ctx, owner, "z", id1))
	require.NoError(t, s.MarkPending(ctx, owner, "z", id2))
	pending, err := s.ListPending(ctx, owner, "z")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{id1, id2}, pending)

	require.NoError(t, s.ClearPending(ctx, owner, "z", id1))
	pending, err = s.ListPending(ctx, owner, "z")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id2}, pending)
}
