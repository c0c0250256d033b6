package rpc

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error builds a status error whose message is a stable application code
// from the common package.
func Error(code codes.Code, appCode string) error {
	return status.Error(code, appCode)
}

// AppCode splits err into its gRPC code and application code. ok is false
// when err is not a status error.
func AppCode(err error) (code codes.Code, appCode string, ok bool) {
	st, ok := status.FromError(err)
	if !ok {
		return codes.Unknown, "", false
	}
	return st.Code(), st.Message(), true
}
