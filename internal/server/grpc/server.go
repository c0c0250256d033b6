// Package grpc exposes the account and document services over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/rpc"
	"github.com/dmitrijs2005/useraccounts/internal/server/auth"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"github.com/dmitrijs2005/useraccounts/internal/server/services"
	"google.golang.org/grpc"
)

// IdentityService is what the handlers need from services.IdentityService.
type IdentityService interface {
	SignUp(ctx context.Context, email string, salt, verifier []byte) (*services.Session, error)
	GetSalt(ctx context.Context, email string) ([]byte, error)
	SignIn(ctx context.Context, email string, verifier []byte) (*services.Session, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	SignOut(ctx context.Context, refreshToken string) error
	Verify(ctx context.Context, accountID string) (*models.Account, error)
	UpdateDisplayName(ctx context.Context, p auth.Principal, name string) error
	UpdateEmail(ctx context.Context, p auth.Principal, email string) error
	UpdateCredential(ctx context.Context, p auth.Principal, salt, verifier []byte) (*services.TokenPair, error)
}

type DocumentService interface {
	Get(ctx context.Context, caller, collection, key string) (*models.Document, error)
	Set(ctx context.Context, caller, collection, key string, fields map[string]any, merge bool) error
	Update(ctx context.Context, caller, collection, key string, fields map[string]any) error
	Delete(ctx context.Context, caller, collection, key string) error
	List(ctx context.Context, caller, collection string) ([]*models.Document, error)
}

type AvatarService interface {
	UploadURL(ctx context.Context, accountID string) (key, url string, err error)
	DownloadURL(ctx context.Context, accountID, key string) (string, error)
}

// GRPCServer implements rpc.AccountsServer and rpc.DocumentsServer.
type GRPCServer struct {
	address   string
	identity  IdentityService
	documents DocumentService
	avatars   AvatarService
	logger    logging.Logger
	jwtSecret []byte
}

var (
	_ rpc.AccountsServer  = (*GRPCServer)(nil)
	_ rpc.DocumentsServer = (*GRPCServer)(nil)
)

func NewGRPCServer(address string, l logging.Logger, ids IdentityService, docs DocumentService, avatars AvatarService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   address,
		logger:    l.With("module", "grpc_server"),
		identity:  ids,
		documents: docs,
		avatars:   avatars,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer builds a *grpc.Server with the interceptor chain and both
// services registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	rpc.RegisterAccountsServer(srv, s)
	rpc.RegisterDocumentsServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	<-stopped
	return nil
}
