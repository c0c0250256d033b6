// Package backend is the client's view of the remote account store: an
// identity service that issues sessions and a document store addressed by
// (collection, key).
//
// GRPCBackend implements both over the useraccounts gRPC services. It keeps
// the current session in the local metadata table so a restarted client can
// resume it, refreshes expired access tokens transparently and announces
// every session change to subscribers.
package backend
