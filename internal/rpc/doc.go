// Package rpc declares the useraccounts gRPC services by hand.
//
// Every method is unary and exchanges a google.protobuf.Struct, so no code
// generation step is needed: the service descriptors in this package are
// registered directly on a *grpc.Server, and clients call Invoke with the
// full method name. Binary values travel base64-encoded and timestamps as
// RFC 3339 strings with nanoseconds.
package rpc
