package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memObjects is an in-memory objectAPI.
type memObjects struct {
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string

	bucketErr error
	makeErr   error
	putErr    error
	statErr   error
}

func newMemObjects() *memObjects {
	return &memObjects{
		buckets: make(map[string]bool),
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (m *memObjects) BucketExists(_ context.Context, bucket string) (bool, error) {
	return m.buckets[bucket], m.bucketErr
}

func (m *memObjects) MakeBucket(_ context.Context, bucket string, _ minioLib.MakeBucketOptions) error {
	if m.makeErr != nil {
		return m.makeErr
	}
	m.buckets[bucket] = true
	return nil
}

func (m *memObjects) PutObject(_ context.Context, bucket, name string, r io.Reader, size int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if m.putErr != nil {
		return minioLib.UploadInfo{}, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minioLib.UploadInfo{}, err
	}
	if size >= 0 && int64(len(data)) != size {
		return minioLib.UploadInfo{}, errors.New("size mismatch")
	}
	m.objects[bucket+"/"+name] = data
	m.types[bucket+"/"+name] = opts.ContentType
	return minioLib.UploadInfo{Bucket: bucket, Key: name, Size: int64(len(data))}, nil
}

func (m *memObjects) GetObject(_ context.Context, bucket, name string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	data, ok := m.objects[bucket+"/"+name]
	if !ok {
		return nil, minioLib.ErrorResponse{Code: "NoSuchKey"}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjects) StatObject(_ context.Context, bucket, name string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	if m.statErr != nil {
		return minioLib.ObjectInfo{}, m.statErr
	}
	data, ok := m.objects[bucket+"/"+name]
	if !ok {
		return minioLib.ObjectInfo{}, minioLib.ErrorResponse{Code: "NoSuchKey"}
	}
	return minioLib.ObjectInfo{Key: name, Size: int64(len(data))}, nil
}

func TestNewClientWithAPI(t *testing.T) {
	tests := []struct {
		name    string
		api     *memObjects
		wantErr string
	}{
		{
			name: "bucket exists",
			api: func() *memObjects {
				m := newMemObjects()
				m.buckets["snapshots"] = true
				return m
			}(),
		},
		{
			name: "bucket created",
			api:  newMemObjects(),
		},
		{
			name: "exists check fails",
			api: func() *memObjects {
				m := newMemObjects()
				m.bucketErr = errors.New("boom")
				return m
			}(),
			wantErr: "failed to check bucket existence",
		},
		{
			name: "create fails",
			api: func() *memObjects {
				m := newMemObjects()
				m.makeErr = errors.New("denied")
				return m
			}(),
			wantErr: "failed to create bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClientWithAPI(context.Background(), tt.api, "snapshots")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Nil(t, c)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.api.buckets["snapshots"])
		})
	}
}

func TestClient_UploadDownload(t *testing.T) {
	ctx := context.Background()
	api := newMemObjects()
	c, err := NewClientWithAPI(ctx, api, "snapshots")
	require.NoError(t, err)

	payload := []byte(`{"zone":"default"}`)
	require.NoError(t, c.Upload(ctx, "owner/default/1.json", bytes.NewReader(payload), int64(len(payload))))
	assert.Equal(t, snapshotContentType, api.types["snapshots/owner/default/1.json"])

	ok, err := c.Exists(ctx, "owner/default/1.json")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := c.Download(ctx, "owner/default/1.json")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("upload", func(t *testing.T) {
		api := newMemObjects()
		api.putErr = errors.New("put-fail")
		c := &Client{api: api, bucket: "b"}
		err := c.Upload(ctx, "k", bytes.NewReader([]byte("data")), 4)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upload snapshot")
	})

	t.Run("download missing", func(t *testing.T) {
		c := &Client{api: newMemObjects(), bucket: "b"}
		rc, err := c.Download(ctx, "absent")
		assert.Nil(t, rc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get snapshot")
	})

	t.Run("exists missing", func(t *testing.T) {
		c := &Client{api: newMemObjects(), bucket: "b"}
		ok, err := c.Exists(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("exists other error", func(t *testing.T) {
		api := newMemObjects()
		api.statErr = errors.New("stat-fail")
		c := &Client{api: api, bucket: "b"}
		ok, err := c.Exists(ctx, "k")
		require.Error(t, err)
		assert.False(t, ok)
		assert.Contains(t, err.Error(), "failed to stat snapshot")
	})
}
