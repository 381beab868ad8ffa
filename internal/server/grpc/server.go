// Package grpcserver exposes the account API over gRPC.
package grpcserver

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"

	"github.com/and161185/account-keeper/internal/convert"
	"github.com/and161185/account-keeper/internal/errs"
	"github.com/and161185/account-keeper/internal/metrics"
	"github.com/and161185/account-keeper/internal/model"
	"github.com/and161185/account-keeper/internal/service"
)

// PublicMethods can be called without an access token.
var PublicMethods = []string{FullMethod("Register"), FullMethod("Login")}

// Server wires services into gRPC handlers.
type Server struct {
	auth  service.AuthService
	users service.UserService
}

var _ AccountsServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, users service.UserService) *Server {
	return &Server{auth: auth, users: users}
}

// NewGRPCServer builds a grpc.Server with the interceptor chain, the account service
// and the standard health service registered. The health server is returned so the
// caller can flip serving status on shutdown.
func NewGRPCServer(srv *Server, tokens TokenParser, log *zap.Logger, m *metrics.Metrics, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		LoggingUnary(log, m),
		ErrorsUnary(log, m),
		RecoverUnary(log),
		AuthUnary(tokens, PublicMethods...),
	))
	s := grpc.NewServer(opts...)
	RegisterAccountsServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// --- Auth ---

// Register creates a new user account and signs it in.
func (s *Server) Register(ctx context.Context, req *convert.RegisterRequest) (*convert.AuthResponse, error) {
	res, err := s.auth.Register(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	out := convert.ToAuth(res.User, res.Tokens)
	return &out, nil
}

func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
		return host
	}
	return p.Addr.String()
}

// Login authenticates a user. Failures are rate limited per email and peer address.
func (s *Server) Login(ctx context.Context, req *convert.LoginRequest) (*convert.AuthResponse, error) {
	tok, u, err := s.auth.Login(ctx, req.Email, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, err
	}
	out := convert.ToAuth(u, tok)
	return &out, nil
}

// --- Users ---

func (s *Server) GetMe(ctx context.Context, _ *convert.Empty) (*convert.UserResponse, error) {
	id, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return userResponse(u), nil
}

// UpdateMe applies a partial update guarded by the version the client last saw.
func (s *Server) UpdateMe(ctx context.Context, req *convert.UpdateUserRequest) (*convert.UserResponse, error) {
	id, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	ver, patch, err := req.Patch()
	if err != nil {
		return nil, err
	}
	u, err := s.users.Update(ctx, id, ver, patch)
	if err != nil {
		return nil, err
	}
	return userResponse(u), nil
}

// DeleteMe soft-deletes the caller. An empty version deletes unconditionally.
func (s *Server) DeleteMe(ctx context.Context, req *convert.VersionRequest) (*convert.UserResponse, error) {
	id, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	ver, err := convert.ParseVersion(req.Version)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Delete(ctx, id, ver)
	if err != nil {
		return nil, err
	}
	return userResponse(u), nil
}

func (s *Server) RestoreMe(ctx context.Context, req *convert.VersionRequest) (*convert.UserResponse, error) {
	id, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	ver, err := convert.ParseVersion(req.Version)
	if err != nil {
		return nil, err
	}
	if ver.IsNil() {
		return nil, errs.New(errs.KindInvalidRequest, "version is required")
	}
	u, err := s.users.Restore(ctx, id, ver)
	if err != nil {
		return nil, err
	}
	return userResponse(u), nil
}

func userResponse(u *model.User) *convert.UserResponse {
	out := convert.ToUser(u)
	return &out
}
