package common

// Wire error codes. The server sends one of these as the gRPC status message;
// the client maps them back to its own sentinel errors. The values mirror the
// auth/firestore codes the mobile app was originally written against.
const (
	CodeEmailInUse         = "email-already-in-use"
	CodeInvalidEmail       = "invalid-email"
	CodeWeakPassword       = "weak-password"
	CodeWrongPassword      = "wrong-password"
	CodeUserNotFound       = "user-not-found"
	CodeUserDisabled       = "user-disabled"
	CodeTooManyRequests    = "too-many-requests"
	CodeRequiresRecentAuth = "requires-recent-login"
	CodePermissionDenied   = "permission-denied"
	CodeNotFound           = "not-found"
	CodeInvalidArgument    = "invalid-argument"
	CodeTokenExpired       = "token-expired"
	CodeUnauthenticated    = "unauthenticated"
)
