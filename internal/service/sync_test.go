package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/credsync/internal/manifest"
	servermocks "github.com/dtroode/credsync/internal/mocks"
	"github.com/dtroode/credsync/internal/model"
	"github.com/dtroode/credsync/internal/repository/bolt"
	"github.com/dtroode/credsync/internal/testutil"
)

func openReplica(t *testing.T) *bolt.Store {
	t.Helper()
	s, err := bolt.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// passThroughZone makes LockZone and ReadZone hand the mock itself to the
// callback.
func passThroughZone(store *servermocks.ReplicaStore, owner uuid.UUID, zone string) {
	run := func(_ context.Context, _ uuid.UUID, _ string, fn func(model.ReplicaStore) error) error {
		return fn(store)
	}
	store.On("LockZone", mock.Anything, owner, zone, mock.Anything).Return(run).Maybe()
	store.On("ReadZone", mock.Anything, owner, zone, mock.Anything).Return(run).Maybe()
}

func credentialBatch() (model.CryptoKey, model.CredentialMetadata, model.SyncRecord) {
	key := model.CryptoKey{
		UUID:     uuid.New(),
		KeyClass: model.KeyClassSymmetric,
		KeyType:  model.KeyTypeAES256GCM,
		Data:     []byte("wrapped"),
	}
	rec := model.SyncRecord{
		UUID:          uuid.New(),
		ParentKeyUUID: key.UUID,
		WrappedKey:    []byte("wk"),
		EncItem:       []byte("ei"),
	}
	meta := model.CredentialMetadata{
		UUID:            rec.UUID,
		Server:          "github.com",
		Account:         "alice",
		PasswordKeyUUID: key.UUID,
	}
	return key, meta, rec
}

func TestSync_Push_AssignsGenCountsAndDefaults(t *testing.T) {
	ctx := context.Background()
	store := openReplica(t)
	svc := NewSync(store, nil, testutil.MakeNoopLogger())
	owner := uuid.New()

	key, meta, rec := credentialBatch()
	res, err := svc.Push(ctx, owner, model.PushRequest{
		Keys:        []model.CryptoKey{key},
		Metadata:    []model.CredentialMetadata{meta},
		SyncRecords: []model.SyncRecord{rec},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.ItemsProcessed)
	assert.Equal(t, int64(3), res.GenCount)
	assert.Equal(t, []model.Assignment{
		{Layer: model.LayerKeys, UUID: key.UUID, GenCount: 1},
		{Layer: model.LayerMetadata, UUID: meta.UUID, GenCount: 2},
		{Layer: model.LayerSyncRecords, UUID: rec.UUID, GenCount: 3},
	}, res.Assigned)

	gotKey, err := store.GetKey(ctx, owner, model.DefaultZone, key.UUID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultAccessGroup, gotKey.AccessGroup)

	gotMeta, err := store.GetMetadata(ctx, owner, model.DefaultZone, meta.UUID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultProtocol, gotMeta.Protocol)
	assert.Equal(t, model.DefaultPort, gotMeta.Port)
	assert.Equal(t, model.DefaultAccessGroup, gotMeta.AccessGroup)

	gotRec, err := store.GetSyncRecord(ctx, owner, model.DefaultZone, rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultEncVersion, gotRec.EncVersion)
	assert.Equal(t, model.DefaultContextID, gotRec.ContextID)
	assert.Equal(t, model.DefaultZone, gotRec.Zone)
	assert.Equal(t, int64(3), gotRec.GenCount)
}

func TestSync_Push_GenCountKeepsGrowing(t *testing.T) {
	ctx := context.Background()
	svc := NewSync(openReplica(t), nil, testutil.MakeNoopLogger())
	owner := uuid.New()

	_, _, rec := credentialBatch()
	first, err := svc.Push(ctx, owner, model.PushRequest{Zone: "z", SyncRecords: []model.SyncRecord{rec}})
	require.NoError(t, err)

	rec.EncItem = []byte("changed")
	second, err := svc.Push(ctx, owner, model.PushRequest{Zone: "z", SyncRecords: []model.SyncRecord{rec}})
	require.NoError(t, err)

	assert.Greater(t, second.GenCount, first.GenCount)
	assert.Equal(t, second.GenCount, second.Assigned[0].GenCount)

	other, err := svc.Push(ctx, owner, model.PushRequest{Zone: "other", SyncRecords: []model.SyncRecord{rec}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.GenCount, "zones count independently")
}

func TestSync_Push_Empty(t *testing.T) {
	ctx := context.Background()
	svc := NewSync(openReplica(t), nil, testutil.MakeNoopLogger())

	res, err := svc.Push(ctx, uuid.New(), model.PushRequest{})
	require.NoError(t, err)
	assert.Zero(t, res.ItemsProcessed)
	assert.Zero(t, res.GenCount)
	assert.Empty(t, res.Assigned)
}

func TestSync_Push_PartialBatchFailure(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	store := servermocks.NewReplicaStore(t)
	svc := NewSync(store, nil, testutil.MakeNoopLogger())

	key, meta, rec := credentialBatch()

	passThroughZone(store, owner, model.DefaultZone)
	store.On("GetSyncState", ctx, owner, model.DefaultZone).Return(model.SyncState{}, model.ErrNotFound).Once()
	store.On("NextGenCount", ctx, owner, model.DefaultZone).Return(int64(1), nil).Once()
	store.On("UpsertKey", ctx, owner, model.DefaultZone, mock.Anything).Return(nil).Once()
	store.On("NextGenCount", ctx, owner, model.DefaultZone).Return(int64(2), nil).Once()
	store.On("UpsertMetadata", ctx, owner, model.DefaultZone, mock.Anything).Return(assert.AnError).Once()
	store.On("RefreshManifest", ctx, owner, model.DefaultZone, mock.Anything).
		Return(model.SyncState{Owner: owner, Zone: model.DefaultZone, GenCount: 2}, nil).Once()

	res, err := svc.Push(ctx, owner, model.PushRequest{
		Keys:        []model.CryptoKey{key},
		Metadata:    []model.CredentialMetadata{meta},
		SyncRecords: []model.SyncRecord{rec},
	})

	var pbf *model.PartialBatchFailure
	require.ErrorAs(t, err, &pbf)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, model.LayerMetadata, pbf.Layer)
	assert.Equal(t, meta.UUID, pbf.UUID)
	assert.Equal(t, 0, pbf.Index)
	assert.Equal(t, 1, pbf.Processed)
	assert.Equal(t, []model.Assignment{{Layer: model.LayerKeys, UUID: key.UUID, GenCount: 1}}, pbf.Assigned)

	assert.Equal(t, 1, res.ItemsProcessed)
	assert.Equal(t, int64(2), res.GenCount)
	require.Len(t, res.Assigned, 1)
	assert.Equal(t, key.UUID, res.Assigned[0].UUID)
}

func TestSync_Push_FirstItemFails(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	store := servermocks.NewReplicaStore(t)
	svc := NewSync(store, nil, testutil.MakeNoopLogger())

	_, _, rec := credentialBatch()

	passThroughZone(store, owner, "z")
	store.On("GetSyncState", ctx, owner, "z").Return(model.SyncState{GenCount: 7}, nil).Once()
	store.On("NextGenCount", ctx, owner, "z").Return(int64(0), assert.AnError).Once()

	res, err := svc.Push(ctx, owner, model.PushRequest{Zone: "z", SyncRecords: []model.SyncRecord{rec}})

	var pbf *model.PartialBatchFailure
	require.ErrorAs(t, err, &pbf)
	assert.Equal(t, model.LayerSyncRecords, pbf.Layer)
	assert.Zero(t, pbf.Processed)
	assert.Empty(t, pbf.Assigned)
	assert.Equal(t, int64(7), res.GenCount)
}

func TestSync_Push_ManifestFailureDiscardsBatch(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	store := servermocks.NewReplicaStore(t)
	svc := NewSync(store, nil, testutil.MakeNoopLogger())

	_, _, rec := credentialBatch()

	passThroughZone(store, owner, "z")
	store.On("GetSyncState", ctx, owner, "z").Return(model.SyncState{GenCount: 3}, nil).Once()
	store.On("NextGenCount", ctx, owner, "z").Return(int64(4), nil).Once()
	store.On("UpsertSyncRecord", ctx, owner, mock.Anything).Return(nil).Once()
	store.On("RefreshManifest", ctx, owner, "z", mock.Anything).Return(model.SyncState{}, assert.AnError).Once()

	res, err := svc.Push(ctx, owner, model.PushRequest{Zone: "z", SyncRecords: []model.SyncRecord{rec}})
	require.ErrorIs(t, err, assert.AnError)

	var pbf *model.PartialBatchFailure
	assert.False(t, errors.As(err, &pbf), "the whole batch is reported as failed")
	assert.Zero(t, res.ItemsProcessed)
	assert.Empty(t, res.Assigned)
}

func TestSync_Push_ConcurrentPushesGetDistinctGenCounts(t *testing.T) {
	ctx := context.Background()
	svc := NewSync(openReplica(t), nil, testutil.MakeNoopLogger())
	owner := uuid.New()

	const devices = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []model.PushResult
	)
	for range devices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, meta, rec := credentialBatch()
			res, err := svc.Push(ctx, owner, model.PushRequest{
				Keys:        []model.CryptoKey{key},
				Metadata:    []model.CredentialMetadata{meta},
				SyncRecords: []model.SyncRecord{rec},
			})
			assert.NoError(t, err)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, res := range results {
		require.Len(t, res.Assigned, 3)
		first := res.Assigned[0].GenCount
		for i, a := range res.Assigned {
			assert.Equal(t, first+int64(i), a.GenCount, "a push owns a contiguous range")
			assert.False(t, seen[a.GenCount])
			seen[a.GenCount] = true
		}
		assert.Equal(t, res.Assigned[2].GenCount, res.GenCount)
	}
	assert.Len(t, seen, devices*3)

	pulled, err := svc.Pull(ctx, owner, model.PullRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(devices*3), pulled.GenCount)
	assert.Len(t, pulled.SyncRecords, devices)
}

func TestSync_Pull(t *testing.T) {
	ctx := context.Background()
	svc := NewSync(openReplica(t), nil, testutil.MakeNoopLogger())
	owner := uuid.New()

	key, meta, rec := credentialBatch()
	first, err := svc.Push(ctx, owner, model.PushRequest{
		Keys:        []model.CryptoKey{key},
		Metadata:    []model.CredentialMetadata{meta},
		SyncRecords: []model.SyncRecord{rec},
	})
	require.NoError(t, err)

	rec.Tombstone = true
	meta.Tombstone = true
	_, err = svc.Push(ctx, owner, model.PushRequest{
		Metadata:    []model.CredentialMetadata{meta},
		SyncRecords: []model.SyncRecord{rec},
	})
	require.NoError(t, err)

	t.Run("everything live", func(t *testing.T) {
		res, err := svc.Pull(ctx, owner, model.PullRequest{})
		require.NoError(t, err)
		assert.Len(t, res.Keys, 1)
		assert.Empty(t, res.Metadata)
		assert.Empty(t, res.SyncRecords)
		assert.Equal(t, int64(5), res.GenCount)
	})

	t.Run("since with tombstones", func(t *testing.T) {
		res, err := svc.Pull(ctx, owner, model.PullRequest{SinceGenCount: first.GenCount, IncludeTombstoned: true})
		require.NoError(t, err)
		assert.Empty(t, res.Keys)
		require.Len(t, res.SyncRecords, 1)
		assert.True(t, res.SyncRecords[0].Tombstone)
		assert.Equal(t, int64(5), res.SyncRecords[0].GenCount)
		require.Len(t, res.Metadata, 1)
	})

	t.Run("up to date", func(t *testing.T) {
		res, err := svc.Pull(ctx, owner, model.PullRequest{SinceGenCount: 5, IncludeTombstoned: true})
		require.NoError(t, err)
		assert.Zero(t, res.Len())
		assert.Equal(t, int64(5), res.GenCount)
	})

	t.Run("negative since", func(t *testing.T) {
		_, err := svc.Pull(ctx, owner, model.PullRequest{SinceGenCount: -1})
		var ve *model.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestSync_Manifest(t *testing.T) {
	ctx := context.Background()
	svc := NewSync(openReplica(t), nil, testutil.MakeNoopLogger())
	owner := uuid.New()

	empty, err := svc.Manifest(ctx, owner, "")
	require.NoError(t, err)
	assert.Zero(t, empty.GenCount)
	assert.Equal(t, model.DefaultZone, empty.Zone)
	assert.Equal(t, manifest.Digest(nil), empty.Digest)

	_, _, a := credentialBatch()
	_, _, b := credentialBatch()
	_, err = svc.Push(ctx, owner, model.PushRequest{SyncRecords: []model.SyncRecord{a, b}})
	require.NoError(t, err)

	state, err := svc.Manifest(ctx, owner, model.DefaultZone)
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.GenCount)
	assert.Equal(t, manifest.Digest([]uuid.UUID{b.UUID, a.UUID}), state.Digest)

	b.Tombstone = true
	_, err = svc.Push(ctx, owner, model.PushRequest{SyncRecords: []model.SyncRecord{b}})
	require.NoError(t, err)

	state, err = svc.Manifest(ctx, owner, model.DefaultZone)
	require.NoError(t, err)
	assert.Equal(t, int64(3), state.GenCount)
	assert.Equal(t, manifest.Digest([]uuid.UUID{a.UUID}), state.Digest)
}

func TestSync_Push_TakesSnapshotOnBoundary(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	store := openReplica(t)
	storage := servermocks.NewSnapshotStorage(t)
	snapshotter := NewSnapshotter(store, storage, 2, testutil.MakeNoopLogger())
	svc := NewSync(store, snapshotter, testutil.MakeNoopLogger())

	_, _, rec := credentialBatch()

	// 0 -> 1 crosses nothing.
	_, err := svc.Push(ctx, owner, model.PushRequest{SyncRecords: []model.SyncRecord{rec}})
	require.NoError(t, err)

	wantKey := SnapshotKey(owner, model.DefaultZone, 2)
	storage.On("Exists", ctx, wantKey).Return(false, nil).Once()
	storage.On("Upload", ctx, wantKey, mock.Anything, mock.AnythingOfType("int64")).Return(assert.AnError).Once()

	// A failed upload does not fail the push.
	res, err := svc.Push(ctx, owner, model.PushRequest{SyncRecords: []model.SyncRecord{rec}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.GenCount)
}
