package grpc

import (
	"context"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/rpc"
	"github.com/dmitrijs2005/useraccounts/internal/server/auth"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"github.com/dmitrijs2005/useraccounts/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"
)

func identityValue(a *models.Account) *structpb.Value {
	return rpc.Object(rpc.Message(rpc.Fields{
		"uid":            rpc.String(a.ID),
		"email":          rpc.String(a.Email),
		"display_name":   rpc.String(a.DisplayName),
		"email_verified": rpc.Bool(false),
	}))
}

func tokensValue(p *services.TokenPair) *structpb.Value {
	return rpc.Object(rpc.Message(rpc.Fields{
		"access_token":  rpc.String(p.AccessToken),
		"refresh_token": rpc.String(p.RefreshToken),
	}))
}

func sessionMessage(s *services.Session) *structpb.Struct {
	return rpc.Message(rpc.Fields{"identity": identityValue(s.Account), "tokens": tokensValue(s.Tokens)})
}

// credential decodes the salt and verifier of a request.
func credential(in *structpb.Struct) (salt, verifier []byte, err error) {
	if salt, err = rpc.GetBytes(in, "salt"); err != nil {
		return nil, nil, rpc.Error(codes.InvalidArgument, common.CodeInvalidArgument)
	}
	if verifier, err = rpc.GetBytes(in, "verifier"); err != nil {
		return nil, nil, rpc.Error(codes.InvalidArgument, common.CodeInvalidArgument)
	}
	return salt, verifier, nil
}

func principal(ctx context.Context) (auth.Principal, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return auth.Principal{}, rpc.Error(codes.Unauthenticated, common.CodeUnauthenticated)
	}
	return p, nil
}

func (s *GRPCServer) Ping(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Message(rpc.Fields{"status": rpc.String("OK")}), nil
}

func (s *GRPCServer) SignUp(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	salt, verifier, err := credential(in)
	if err != nil {
		return nil, err
	}
	sess, err := s.identity.SignUp(ctx, rpc.GetString(in, "email"), salt, verifier)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.logger.Info(ctx, "Registered", "uid", sess.Account.ID)
	return sessionMessage(sess), nil
}

func (s *GRPCServer) GetSalt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	salt, err := s.identity.GetSalt(ctx, rpc.GetString(in, "email"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(rpc.Fields{"salt": rpc.Bytes(salt)}), nil
}

func (s *GRPCServer) SignIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	verifier, err := rpc.GetBytes(in, "verifier")
	if err != nil {
		return nil, rpc.Error(codes.InvalidArgument, common.CodeInvalidArgument)
	}
	sess, err := s.identity.SignIn(ctx, rpc.GetString(in, "email"), verifier)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return sessionMessage(sess), nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	pair, err := s.identity.RefreshToken(ctx, rpc.GetString(in, "refresh_token"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(rpc.Fields{"tokens": tokensValue(pair)}), nil
}

func (s *GRPCServer) SignOut(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.identity.SignOut(ctx, rpc.GetString(in, "refresh_token")); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(nil), nil
}

func (s *GRPCServer) VerifySession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.identity.Verify(ctx, p.AccountID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(rpc.Fields{"identity": identityValue(a)}), nil
}

func (s *GRPCServer) UpdateDisplayName(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.identity.UpdateDisplayName(ctx, p, rpc.GetString(in, "display_name")); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(nil), nil
}

func (s *GRPCServer) UpdateEmail(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.identity.UpdateEmail(ctx, p, rpc.GetString(in, "email")); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(nil), nil
}

func (s *GRPCServer) UpdateCredential(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	salt, verifier, err := credential(in)
	if err != nil {
		return nil, err
	}
	pair, err := s.identity.UpdateCredential(ctx, p, salt, verifier)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(rpc.Fields{"tokens": tokensValue(pair)}), nil
}
