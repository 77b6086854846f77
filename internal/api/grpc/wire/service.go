// Package wire defines the credsync gRPC services without generated code.
// Every RPC carries a JSON document inside a wrapperspb.BytesValue.
package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	SyncServiceName = "credsync.v1.Sync"
	AuthServiceName = "credsync.v1.Auth"

	SyncPushMethod     = "/" + SyncServiceName + "/Push"
	SyncPullMethod     = "/" + SyncServiceName + "/Pull"
	SyncManifestMethod = "/" + SyncServiceName + "/Manifest"

	AuthSignupMethod  = "/" + AuthServiceName + "/Signup"
	AuthLoginMethod   = "/" + AuthServiceName + "/Login"
	AuthRefreshMethod = "/" + AuthServiceName + "/Refresh"
)

// unaryMethod is the shape shared by every credsync RPC.
type unaryMethod func(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)

func unaryHandler(fullMethod string, pick func(srv any) unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.BytesValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := pick(srv)
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(ctx, req.(*wrapperspb.BytesValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// SyncServer is the server API of credsync.v1.Sync.
type SyncServer interface {
	Push(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Pull(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Manifest(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedSyncServer can be embedded for forward compatibility.
type UnimplementedSyncServer struct{}

func (UnimplementedSyncServer) Push(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Push not implemented")
}

func (UnimplementedSyncServer) Pull(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Pull not implemented")
}

func (UnimplementedSyncServer) Manifest(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Manifest not implemented")
}

// SyncServiceDesc describes credsync.v1.Sync.
var SyncServiceDesc = grpc.ServiceDesc{
	ServiceName: SyncServiceName,
	HandlerType: (*SyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: unaryHandler(SyncPushMethod, func(srv any) unaryMethod { return srv.(SyncServer).Push })},
		{MethodName: "Pull", Handler: unaryHandler(SyncPullMethod, func(srv any) unaryMethod { return srv.(SyncServer).Pull })},
		{MethodName: "Manifest", Handler: unaryHandler(SyncManifestMethod, func(srv any) unaryMethod { return srv.(SyncServer).Manifest })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "credsync/v1/sync.proto",
}

func RegisterSyncServer(s grpc.ServiceRegistrar, srv SyncServer) {
	s.RegisterService(&SyncServiceDesc, srv)
}

// SyncClient is the client API of credsync.v1.Sync.
type SyncClient interface {
	Push(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Pull(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Manifest(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type syncClient struct{ cc grpc.ClientConnInterface }

func NewSyncClient(cc grpc.ClientConnInterface) SyncClient { return &syncClient{cc: cc} }

func (c *syncClient) Push(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke(ctx, c.cc, SyncPushMethod, in, opts...)
}

func (c *syncClient) Pull(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke(ctx, c.cc, SyncPullMethod, in, opts...)
}

func (c *syncClient) Manifest(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke(ctx, c.cc, SyncManifestMethod, in, opts...)
}

// AuthServer is the server API of credsync.v1.Auth.
type AuthServer interface {
	Signup(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Login(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Refresh(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedAuthServer can be embedded for forward compatibility.
type UnimplementedAuthServer struct{}

func (UnimplementedAuthServer) Signup(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Signup not implemented")
}

func (UnimplementedAuthServer) Login(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}

func (UnimplementedAuthServer) Refresh(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
}

// AuthServiceDesc describes credsync.v1.Auth.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Signup", Handler: unaryHandler(AuthSignupMethod, func(srv any) unaryMethod { return srv.(AuthServer).Signup })},
		{MethodName: "Login", Handler: unaryHandler(AuthLoginMethod, func(srv any) unaryMethod { return srv.(AuthServer).Login })},
		{MethodName: "Refresh", Handler: unaryHandler(AuthRefreshMethod, func(srv any) unaryMethod { return srv.(AuthServer).Refresh })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "credsync/v1/auth.proto",
}

func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// AuthClient is the client API of credsync.v1.Auth.
type AuthClient interface {
	Signup(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Login(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Refresh(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type authClient struct{ cc grpc.ClientConnInterface }

func NewAuthClient(cc grpc.ClientConnInterface) AuthClient { return &authClient{cc: cc} }

func (c *authClient) Signup(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke(ctx, c.cc, AuthSignupMethod, in, opts...)
}

func (c *authClient) Login(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke(ctx, c.cc, AuthLoginMethod, in, opts...)
}

func (c *authClient) Refresh(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke(ctx, c.cc, AuthRefreshMethod, in, opts...)
}
