package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/rpc"
	"github.com/dmitrijs2005/useraccounts/internal/server/services"
	"google.golang.org/grpc/codes"
)

var statusTable = []struct {
	err     error
	code    codes.Code
	appCode string
}{
	{services.ErrInvalidEmail, codes.InvalidArgument, common.CodeInvalidEmail},
	{services.ErrInvalidArgument, codes.InvalidArgument, common.CodeInvalidArgument},
	{services.ErrEmailInUse, codes.AlreadyExists, common.CodeEmailInUse},
	{services.ErrUserNotFound, codes.NotFound, common.CodeUserNotFound},
	{services.ErrWrongPassword, codes.Unauthenticated, common.CodeWrongPassword},
	{services.ErrUserDisabled, codes.PermissionDenied, common.CodeUserDisabled},
	{services.ErrTooManyRequests, codes.ResourceExhausted, common.CodeTooManyRequests},
	{services.ErrRequiresRecentAuth, codes.FailedPrecondition, common.CodeRequiresRecentAuth},
	{services.ErrUnauthenticated, codes.Unauthenticated, common.CodeUnauthenticated},
	{services.ErrPermissionDenied, codes.PermissionDenied, common.CodePermissionDenied},
	{common.ErrorNotFound, codes.NotFound, common.CodeNotFound},
}

// toStatus converts a service error into a status error carrying an
// application code. Unrecognised errors are logged and hidden behind
// codes.Internal.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return rpc.Error(e.code, e.appCode)
		}
	}
	s.logger.Error(ctx, "internal error", "error", err)
	return rpc.Error(codes.Internal, "internal error")
}
