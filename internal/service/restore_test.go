package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/credsync/internal/mocks"
	"github.com/dtroode/credsync/internal/model"
	"github.com/dtroode/credsync/internal/testutil"
)

// storedSnapshot pushes one credential into a fresh zone and returns the
// snapshot document taken right after, keyed at gencount 3.
func storedSnapshot(t *testing.T, owner uuid.UUID) ([]byte, model.SyncRecord) {
	t.Helper()
	ctx := context.Background()
	store := openReplica(t)
	storage := servermocks.NewSnapshotStorage(t)
	logger := testutil.MakeNoopLogger()

	key, meta, rec := credentialBatch()
	_, err := NewSync(store, nil, logger).Push(ctx, owner, model.PushRequest{
		Keys:        []model.CryptoKey{key},
		Metadata:    []model.CredentialMetadata{meta},
		SyncRecords: []model.SyncRecord{rec},
	})
	require.NoError(t, err)

	var doc []byte
	objectKey := SnapshotKey(owner, model.DefaultZone, 3)
	storage.On("Exists", ctx, objectKey).Return(false, nil).Once()
	storage.On("Upload", ctx, objectKey, mock.Anything, mock.AnythingOfType("int64")).
		Run(func(args mock.Arguments) {
			data, err := io.ReadAll(args.Get(2).(io.Reader))
			require.NoError(t, err)
			doc = data
		}).
		Return(nil).Once()

	require.NoError(t, NewSnapshotter(store, storage, 1, logger).Take(ctx, owner, model.DefaultZone))
	require.NotEmpty(t, doc)
	return doc, rec
}

func serveSnapshot(storage *servermocks.SnapshotStorage, key string, doc []byte) {
	storage.On("Download", mock.Anything, key).
		Return(func(context.Context, string) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(doc)), nil
		}).Once()
}

func TestSync_Restore_EmptyZone(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	doc, rec := storedSnapshot(t, owner)

	store := openReplica(t)
	storage := servermocks.NewSnapshotStorage(t)
	serveSnapshot(storage, SnapshotKey(owner, model.DefaultZone, 3), doc)

	logger := testutil.MakeNoopLogger()
	svc := NewSync(store, NewSnapshotter(store, storage, 0, logger), logger)

	n, err := svc.Restore(ctx, owner, "", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pulled, err := svc.Pull(ctx, owner, model.PullRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), pulled.GenCount)
	require.Len(t, pulled.SyncRecords, 1)
	assert.Equal(t, rec.UUID, pulled.SyncRecords[0].UUID)
	assert.Equal(t, int64(3), pulled.SyncRecords[0].GenCount)

	state, err := svc.Manifest(ctx, owner, model.DefaultZone)
	require.NoError(t, err)
	assert.Equal(t, int64(3), state.GenCount)

	// The next push continues after the restored counter.
	_, _, other := credentialBatch()
	res, err := svc.Push(ctx, owner, model.PushRequest{SyncRecords: []model.SyncRecord{other}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.GenCount)
}

func TestSync_Restore_KeepsNewerRows(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	doc, rec := storedSnapshot(t, owner)

	store := openReplica(t)
	storage := servermocks.NewSnapshotStorage(t)
	logger := testutil.MakeNoopLogger()
	svc := NewSync(store, NewSnapshotter(store, storage, 0, logger), logger)

	// The live zone has moved past the snapshot for this record.
	rec.EncItem = []byte("newer")
	for range 5 {
		_, err := svc.Push(ctx, owner, model.PushRequest{SyncRecords: []model.SyncRecord{rec}})
		require.NoError(t, err)
	}

	serveSnapshot(storage, SnapshotKey(owner, model.DefaultZone, 3), doc)
	n, err := svc.Restore(ctx, owner, model.DefaultZone, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "only the key and metadata were missing")

	got, err := store.GetSyncRecord(ctx, owner, model.DefaultZone, rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), got.EncItem)
	assert.Equal(t, int64(5), got.GenCount)

	state, err := svc.Manifest(ctx, owner, model.DefaultZone)
	require.NoError(t, err)
	assert.Equal(t, int64(5), state.GenCount, "the counter never moves back")
}

func TestSync_Restore_Disabled(t *testing.T) {
	svc := NewSync(openReplica(t), nil, testutil.MakeNoopLogger())
	_, err := svc.Restore(context.Background(), uuid.New(), "", 3)
	assert.ErrorIs(t, err, ErrSnapshotsDisabled)
}

func TestSync_Restore_MissingSnapshot(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	store := openReplica(t)
	storage := servermocks.NewSnapshotStorage(t)
	logger := testutil.MakeNoopLogger()

	storage.On("Download", ctx, SnapshotKey(owner, model.DefaultZone, 9)).Return(nil, model.ErrNotFound).Once()

	svc := NewSync(store, NewSnapshotter(store, storage, 0, logger), logger)
	_, err := svc.Restore(ctx, owner, model.DefaultZone, 9)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
