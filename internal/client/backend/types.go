package backend

import "context"

// Identity is an authenticated account handle.
type Identity struct {
	UID           string
	DisplayName   string
	Email         string
	EmailVerified bool
}

// Document is a JSON-compatible field bag. Numbers read back from the store
// are float64.
type Document map[string]any

// Item is a document together with its key, as returned by List.
type Item struct {
	Key    string
	Fields Document
}

// IdentityService issues and tracks the session.
//
// Subscribe delivers the current identity (nil when signed out) as soon as it
// is known and then every change. SignUp establishes the session without
// notifying subscribers; callers finish their own setup and then call
// Announce.
type IdentityService interface {
	SignUp(ctx context.Context, email, password string) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignOut(ctx context.Context) error
	UpdateDisplayName(ctx context.Context, name string) error
	UpdateEmail(ctx context.Context, email string) error
	UpdateCredential(ctx context.Context, password string) error
	Subscribe(fn func(*Identity)) (unsubscribe func())
	Announce()
}

// DocumentStore reads and writes documents. Get reports a missing document
// as ErrNotFound.
type DocumentStore interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Set(ctx context.Context, collection, key string, fields Document, merge bool) error
	Update(ctx context.Context, collection, key string, fields Document) error
	Delete(ctx context.Context, collection, key string) error
	List(ctx context.Context, collection string) ([]Item, error)
}

// AvatarStore hands out presigned URLs for profile pictures.
type AvatarStore interface {
	PresignAvatarUpload(ctx context.Context) (key, url string, err error)
	PresignAvatarDownload(ctx context.Context, key string) (url string, err error)
}
