package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"

	"github.com/dtroode/credsync/internal/api/grpc/handler"
	"github.com/dtroode/credsync/internal/api/grpc/middleware"
	"github.com/dtroode/credsync/internal/api/grpc/wire"
	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/model"
)

// maxMessageBytes bounds a single push or pull body.
const maxMessageBytes = 32 << 20

// Router wires the credsync services and their interceptors into a gRPC server.
type Router struct {
	syncService    handler.SyncService
	authService    handler.AuthService
	tokens         middleware.TokenResolver
	contextManager model.ContextManager
	logger         *logger.Logger
}

func New(
	syncService handler.SyncService,
	authService handler.AuthService,
	tokens middleware.TokenResolver,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		syncService:    syncService,
		authService:    authService,
		tokens:         tokens,
		contextManager: contextManager,
		logger:         logger,
	}
}

// requiresAuth is true for every method outside the Auth service.
func requiresAuth(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), "/"+wire.AuthServiceName+"/")
}

// Register builds a gRPC server with logging, panic recovery and bearer
// authentication, and registers both services on it.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	recovering := middleware.NewRecovery(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokens, r.contextManager, r.logger)

	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMessageBytes),
		grpc.MaxSendMsgSize(maxMessageBytes),
		grpc.ChainUnaryInterceptor(
			logging.HandleGRPC,
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(recovering.HandlePanic)),
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresAuth),
			),
		),
	)

	wire.RegisterAuthServer(s, handler.NewAuth(r.authService, r.logger))
	wire.RegisterSyncServer(s, handler.NewSync(r.syncService, r.contextManager, r.logger))

	return s
}
