package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/credsync/internal/testutil"
)

func TestLogging_HandleGRPC(t *testing.T) {
	t.Parallel()

	lg := NewLogging(testutil.MakeNoopLogger())

	tests := []struct {
		name     string
		handler  grpc.UnaryHandler
		wantResp any
		wantErr  error
	}{
		{
			name: "success",
			handler: func(context.Context, any) (any, error) {
				return "ok", nil
			},
			wantResp: "ok",
		},
		{
			name: "client fault passes through",
			handler: func(context.Context, any) (any, error) {
				return nil, status.Error(codes.InvalidArgument, "bad input")
			},
			wantErr: status.Error(codes.InvalidArgument, "bad input"),
		},
		{
			name: "server fault passes through",
			handler: func(context.Context, any) (any, error) {
				return nil, errors.New("boom")
			},
			wantErr: errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := &grpc.UnaryServerInfo{FullMethod: "/credsync.v1.Sync/Push"}
			resp, err := lg.HandleGRPC(context.Background(), struct{}{}, info, tt.handler)

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.wantResp, resp)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr.Error(), err.Error())
			assert.Equal(t, status.Code(tt.wantErr), status.Code(err))
		})
	}
}

func TestIsClientFault(t *testing.T) {
	assert.True(t, isClientFault(codes.Unauthenticated))
	assert.True(t, isClientFault(codes.Aborted))
	assert.False(t, isClientFault(codes.Internal))
	assert.False(t, isClientFault(codes.Unavailable))
}

func TestRecovery_HandlePanic(t *testing.T) {
	r := NewRecovery(testutil.MakeNoopLogger())

	err := r.HandlePanic("nil map write")
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestLogging_LevelFollowsFault(t *testing.T) {
	log, buf := testutil.MakeBufferLogger()
	lg := NewLogging(log)
	info := &grpc.UnaryServerInfo{FullMethod: "/credsync.v1.Sync/Pull"}

	_, _ = lg.HandleGRPC(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.Unauthenticated, "expired")
	})
	_, _ = lg.HandleGRPC(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, errors.New("db down")
	})

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN","msg":"gRPC request rejected"`)
	assert.Contains(t, out, `"level":"ERROR","msg":"gRPC request failed"`)
	assert.Contains(t, out, `"method":"/credsync.v1.Sync/Pull"`)
}
