package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/credsync/internal/api/grpc/wire"
	"github.com/dtroode/credsync/internal/model"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{name: "validation", err: &model.ValidationError{Field: "zone", Reason: "too long"}, code: codes.InvalidArgument},
		{name: "not found", err: fmt.Errorf("get: %w", model.ErrNotFound), code: codes.NotFound},
		{name: "login taken", err: model.ErrLoginTaken, code: codes.AlreadyExists},
		{name: "bad credentials", err: model.ErrInvalidCredentials, code: codes.Unauthenticated},
		{name: "bad token", err: model.ErrInvalidToken, code: codes.Unauthenticated},
		{name: "revoked", err: model.ErrTokenRevoked, code: codes.Unauthenticated},
		{name: "expired", err: model.ErrTokenExpired, code: codes.Unauthenticated},
		{name: "mismatch", err: model.ErrTokenMismatch, code: codes.Unauthenticated},
		{name: "anything else", err: errors.New("db down"), code: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(handleError(tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
		})
	}
}

func TestHandleError_InternalHidesCause(t *testing.T) {
	st, _ := status.FromError(handleError(errors.New("password=hunter2")))
	assert.NotContains(t, st.Message(), "hunter2")
}

func TestHandleError_PartialBatch(t *testing.T) {
	id := uuid.New()
	err := fmt.Errorf("push: %w", &model.PartialBatchFailure{
		Layer:     model.LayerSyncRecords,
		UUID:      id,
		Index:     2,
		Processed: 5,
		Err:       errors.New("boom"),
	})

	st, ok := status.FromError(handleError(err))
	require.True(t, ok)
	assert.Equal(t, codes.Aborted, st.Code())

	require.Len(t, st.Details(), 1)
	info, ok := st.Details()[0].(*errdetails.ErrorInfo)
	require.True(t, ok)
	assert.Equal(t, wire.ReasonPartialBatch, info.GetReason())
	assert.Equal(t, wire.ErrorDomain, info.GetDomain())
	assert.Equal(t, map[string]string{
		"layer":     "sync_records",
		"uuid":      id.String(),
		"index":     "2",
		"processed": "5",
	}, info.GetMetadata())
}

func TestHandleError_PartialBatchCarriesAssigned(t *testing.T) {
	key, rec := uuid.New(), uuid.New()
	err := &model.PartialBatchFailure{
		Layer:     model.LayerSyncRecords,
		UUID:      rec,
		Processed: 2,
		Assigned: []model.Assignment{
			{Layer: model.LayerKeys, UUID: key, GenCount: 11},
			{Layer: model.LayerMetadata, UUID: rec, GenCount: 12},
		},
		Err: errors.New("boom"),
	}

	st, ok := status.FromError(handleError(err))
	require.True(t, ok)
	require.Len(t, st.Details(), 1)
	info := st.Details()[0].(*errdetails.ErrorInfo)

	got, decodeErr := wire.DecodeAssignments(info.GetMetadata()[wire.MetaAssigned])
	require.NoError(t, decodeErr)
	assert.Equal(t, err.Assigned, got)
}
