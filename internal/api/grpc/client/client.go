// Package client is the device side of the credsync gRPC transport.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/retry"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/credsync/internal/api/grpc/wire"
	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/model"
)

// retryCodes are the transport failures worth another attempt.
var retryCodes = []codes.Code{codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted}

const (
	defaultMaxAttempts = 3
	defaultBackoff    = 100 * time.Millisecond
	maxMessageBytes   = 32 << 20
)

// Options configures Dial.
type Options struct {
	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
	// MaxAttempts bounds tries of a call failing with one of retryCodes,
	// the first one included. A call whose own context has expired is not
	// retried.
	MaxAttempts uint
	// Backoff is the base of the exponential backoff between retries.
	Backoff time.Duration
	// TLS switches the connection to TLS with the system roots.
	TLS bool
	// Dialer replaces the network dialer, mostly for tests.
	Dialer func(ctx context.Context, addr string) (net.Conn, error)
}

// Client talks to a credsync server on behalf of one account. It keeps the
// session tokens, attaches the access token to every sync call and rotates
// it once when the server answers Unauthenticated.
type Client struct {
	cc      *grpc.ClientConn
	sync    wire.SyncClient
	auth    wire.AuthClient
	timeout time.Duration
	logger  *logger.Logger

	mu      sync.RWMutex
	session model.Session

	refreshing singleflight.Group
}

// Dial creates a client for target. The connection is established lazily on
// the first call.
func Dial(target string, opts Options, logger *logger.Logger) (*Client, error) {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	c := &Client{timeout: opts.Timeout, logger: logger}

	creds := insecure.NewCredentials()
	if opts.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMessageBytes),
			grpc.MaxCallSendMsgSize(maxMessageBytes),
		),
		grpc.WithChainUnaryInterceptor(
			retry.UnaryClientInterceptor(
				retry.WithMax(opts.MaxAttempts),
				retry.WithBackoff(retry.BackoffExponentialWithJitter(opts.Backoff, 0.1)),
				retry.WithCodes(retryCodes...),
				retry.WithOnRetryCallback(func(_ context.Context, attempt uint, err error) {
					logger.Debug("Client: retrying call",
						"attempt", attempt,
						"error", err.Error())
				}),
			),
			c.bearer,
		),
	}
	if opts.Dialer != nil {
		dialOpts = append(dialOpts, grpc.WithContextDialer(opts.Dialer))
	}

	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client: %w", err)
	}

	c.cc = cc
	c.sync = wire.NewSyncClient(cc)
	c.auth = wire.NewAuthClient(cc)
	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Session returns the current session.
func (c *Client) Session() model.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession installs tokens obtained elsewhere.
func (c *Client) SetSession(s model.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

func (c *Client) Signup(ctx context.Context, login, password string) (model.Session, error) {
	return c.authenticate(ctx, "signup", login, password, c.auth.Signup)
}

func (c *Client) Login(ctx context.Context, login, password string) (model.Session, error) {
	return c.authenticate(ctx, "login", login, password, c.auth.Login)
}

type authCall func(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)

func (c *Client) authenticate(ctx context.Context, op, login, password string, call authCall) (model.Session, error) {
	in, err := wire.Encode(wire.Credentials{Login: login, Password: password})
	if err != nil {
		return model.Session{}, err
	}

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	out, err := call(ctx, in)
	if err != nil {
		return model.Session{}, mapError(op, err)
	}

	var s wire.Session
	if err := wire.Decode(out, &s); err != nil {
		return model.Session{}, fmt.Errorf("failed to decode %s response: %w", op, err)
	}

	session := s.Model()
	c.SetSession(session)
	return session, nil
}

// Refresh rotates the refresh token. Concurrent callers share one rotation.
func (c *Client) Refresh(ctx context.Context) (model.Session, error) {
	v, err, _ := c.refreshing.Do("refresh", func() (any, error) {
		current := c.Session()
		if current.RefreshToken == "" {
			return model.Session{}, &model.AuthError{Op: "refresh", Err: model.ErrInvalidToken}
		}

		in, err := wire.Encode(wire.RefreshRequest{RefreshToken: current.RefreshToken})
		if err != nil {
			return model.Session{}, err
		}

		ctx, cancel := c.ctx(ctx)
		defer cancel()

		out, err := c.auth.Refresh(ctx, in)
		if err != nil {
			return model.Session{}, mapError("refresh", err)
		}

		var s wire.Session
		if err := wire.Decode(out, &s); err != nil {
			return model.Session{}, fmt.Errorf("failed to decode refresh response: %w", err)
		}

		session := s.Model()
		if len(session.VaultSalt) == 0 {
			session.VaultSalt = current.VaultSalt
		}
		c.SetSession(session)

		c.logger.Debug("Client: session refreshed",
			"user_id", session.UserID)
		return session, nil
	})
	if err != nil {
		return model.Session{}, err
	}
	return v.(model.Session), nil
}

func (c *Client) Push(ctx context.Context, req model.PushRequest) (model.PushResult, error) {
	in, err := wire.Encode(wire.PushRequestFromModel(req))
	if err != nil {
		return model.PushResult{}, err
	}

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	out, err := c.sync.Push(ctx, in)
	if err != nil {
		return model.PushResult{}, mapError("push", err)
	}

	var resp wire.PushResponse
	if err := wire.Decode(out, &resp); err != nil {
		return model.PushResult{}, fmt.Errorf("failed to decode push response: %w", err)
	}
	return resp.Model(), nil
}

func (c *Client) Pull(ctx context.Context, req model.PullRequest) (model.PullResult, error) {
	in, err := wire.Encode(wire.PullRequest{
		Zone:              req.Zone,
		SinceGenCount:     req.SinceGenCount,
		IncludeTombstoned: req.IncludeTombstoned,
	})
	if err != nil {
		return model.PullResult{}, err
	}

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	out, err := c.sync.Pull(ctx, in)
	if err != nil {
		return model.PullResult{}, mapError("pull", err)
	}

	var resp wire.PullResponse
	if err := wire.Decode(out, &resp); err != nil {
		return model.PullResult{}, fmt.Errorf("failed to decode pull response: %w", err)
	}

	zone := req.Zone
	if zone == "" {
		zone = model.DefaultZone
	}
	return resp.Model(zone), nil
}

func (c *Client) Manifest(ctx context.Context, zone string) (model.SyncState, error) {
	in, err := wire.Encode(wire.ManifestRequest{Zone: zone})
	if err != nil {
		return model.SyncState{}, err
	}

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	out, err := c.sync.Manifest(ctx, in)
	if err != nil {
		return model.SyncState{}, mapError("manifest", err)
	}

	var resp wire.ManifestResponse
	if err := wire.Decode(out, &resp); err != nil {
		return model.SyncState{}, fmt.Errorf("failed to decode manifest response: %w", err)
	}

	return model.SyncState{
		Owner:    c.Session().UserID,
		Zone:     resp.Zone,
		GenCount: resp.GenCount,
		Digest:   resp.Digest,
	}, nil
}

// bearer attaches the access token to sync calls and retries a call once
// with a rotated token when the server rejects the current one.
func (c *Client) bearer(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if strings.HasPrefix(method, "/"+wire.AuthServiceName+"/") {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	session := c.Session()
	err := invoker(withToken(ctx, session.AccessToken), method, req, reply, cc, opts...)
	if status.Code(err) != codes.Unauthenticated || session.RefreshToken == "" {
		return err
	}

	c.logger.Info("Client: access token rejected, refreshing",
		"method", method)

	refreshed, rerr := c.Refresh(ctx)
	if rerr != nil {
		c.logger.Warn("Client: refresh failed",
			"error", rerr.Error())
		return err
	}
	return invoker(withToken(ctx, refreshed.AccessToken), method, req, reply, cc, opts...)
}

func withToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.timeout)
}
