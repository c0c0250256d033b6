package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/pubsub"
	"github.com/dmitrijs2005/useraccounts/internal/validation"
)

// DefaultFetchTimeout bounds a profile fetch when Options leaves it unset.
const DefaultFetchTimeout = 5 * time.Second

// ErrFetchTimeout is logged when a fetch loses the race against its timer.
var ErrFetchTimeout = errors.New("profile fetch timed out")

type Options struct {
	FetchTimeout time.Duration
}

// Controller owns the published profile view of one signed-in account.
type Controller struct {
	store   backend.DocumentStore
	ids     backend.IdentityService
	timeout time.Duration
	logger  logging.Logger
	now     func() time.Time

	mu        sync.Mutex
	identity  *backend.Identity
	view      View
	hasView   bool
	started   uint64 // sequence of the newest fetch started
	published uint64 // sequence of the newest fetch published
	closed    bool

	views      pubsub.Hub[View]
	incomplete pubsub.Hub[View]
}

func New(store backend.DocumentStore, ids backend.IdentityService, opts Options, l logging.Logger) *Controller {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Controller{
		store:   store,
		ids:     ids,
		timeout: timeout,
		logger:  l.With("module", "profile"),
		now:     time.Now,
	}
}

// Subscribe registers fn for published views. The current view, if any, is
// delivered right away.
func (c *Controller) Subscribe(fn func(View)) (unsubscribe func()) {
	c.mu.Lock()
	v, ok := c.view, c.hasView
	c.mu.Unlock()
	if ok {
		return c.views.SubscribeWith(fn, v)
	}
	return c.views.Subscribe(fn)
}

// OnIncomplete registers fn to be told when the account turns out to have no
// profile record.
func (c *Controller) OnIncomplete(fn func(View)) (unsubscribe func()) {
	return c.incomplete.Subscribe(fn)
}

// View returns the last published view.
func (c *Controller) View() (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view, c.hasView
}

// Close drops all subscribers. Fetches still running complete silently.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.views.Close()
	c.incomplete.Close()
}

// Load switches the controller to id and fetches its record. With
// minimalFirst, or when nothing has been published yet, the minimal view is
// published before Load returns. The returned channel is closed once the
// fetch has settled.
func (c *Controller) Load(ctx context.Context, id backend.Identity, minimalFirst bool) <-chan struct{} {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return closedChan()
	}
	switched := c.identity == nil || c.identity.UID != id.UID
	c.identity = &id
	publish := minimalFirst || !c.hasView || switched
	var v View
	if publish {
		v = Minimal(id)
		c.view, c.hasView = v, true
	}
	c.mu.Unlock()

	if publish {
		c.views.Publish(v)
	}
	return c.fetch(ctx, id)
}

// Refresh re-fetches the record of the loaded account while the last view
// stays visible. It does nothing before Load.
func (c *Controller) Refresh(ctx context.Context) <-chan struct{} {
	c.mu.Lock()
	if c.closed || c.identity == nil {
		c.mu.Unlock()
		return closedChan()
	}
	id := *c.identity
	c.mu.Unlock()
	return c.fetch(ctx, id)
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fetchResult struct {
	doc backend.Document
	err error
}

func (c *Controller) fetch(ctx context.Context, id backend.Identity) <-chan struct{} {
	c.mu.Lock()
	c.started++
	seq := c.started
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r, ok := c.race(ctx, id.UID)
		if !ok {
			return
		}
		c.settle(ctx, seq, id.UID, r)
	}()
	return done
}

// race runs the store read against the fetch timer. The read is never
// cancelled; a late result is dropped. ok is false when ctx ended first.
func (c *Controller) race(ctx context.Context, uid string) (fetchResult, bool) {
	results := make(chan fetchResult, 1)
	go func() {
		doc, err := c.store.Get(context.WithoutCancel(ctx), common.CollectionProfiles, uid)
		results <- fetchResult{doc: doc, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-results:
		return r, true
	case <-timer.C:
		return fetchResult{err: ErrFetchTimeout}, true
	case <-ctx.Done():
		return fetchResult{}, false
	}
}

// settle publishes the outcome of fetch seq unless the account changed, the
// controller closed, or a fetch started later has already published.
func (c *Controller) settle(ctx context.Context, seq uint64, uid string, r fetchResult) {
	c.mu.Lock()
	if c.closed || c.identity == nil || c.identity.UID != uid || seq < c.published {
		c.mu.Unlock()
		c.logger.Debug(ctx, "dropping superseded profile fetch", "uid", uid)
		return
	}
	minimal := Minimal(*c.identity)

	var v View
	switch {
	case r.err == nil:
		v = Merge(minimal, DecodeRecord(uid, r.doc))
	case errors.Is(r.err, backend.ErrNotFound):
		v = unregistered(minimal)
	default:
		v = offline(minimal, c.view)
	}
	c.published = seq
	c.view, c.hasView = v, true
	c.mu.Unlock()

	switch v.Status {
	case Fresh:
		c.logger.Debug(ctx, "profile fetched", "uid", uid)
	case Unregistered:
		c.logger.Info(ctx, "profile record missing", "uid", uid)
	default:
		c.logger.Warn(ctx, "profile unavailable", "uid", uid, "error", r.err)
	}

	c.views.Publish(v)
	if v.NeedsCompletion {
		c.incomplete.Publish(v)
	}
}

type Step int

const (
	StepDisplayName Step = iota + 1
	StepEmail
	StepCredential
	StepDocument
)

func (s Step) String() string {
	switch s {
	case StepDisplayName:
		return "display name"
	case StepEmail:
		return "email"
	case StepCredential:
		return "credential"
	case StepDocument:
		return "profile document"
	default:
		return "unknown"
	}
}

// SaveError reports the first save step that failed. When an identity step
// failed, StoreErr carries the outcome of the document write that was still
// attempted.
type SaveError struct {
	Step     Step
	Err      error
	StoreErr error
}

func (e *SaveError) Error() string {
	if e.StoreErr != nil {
		return fmt.Sprintf("update %s: %v (profile document: %v)", e.Step, e.Err, e.StoreErr)
	}
	return fmt.Sprintf("update %s: %v", e.Step, e.Err)
}

func (e *SaveError) Unwrap() []error {
	if e.StoreErr != nil {
		return []error{e.Err, e.StoreErr}
	}
	return []error{e.Err}
}

// Save validates form and applies it in order: display name, email and
// credential on the identity service, then the profile document. The first
// identity failure skips the remaining identity steps but not the document
// write. A successful document write is followed by a refresh, which Save
// waits for.
func (c *Controller) Save(ctx context.Context, form validation.ProfileForm) error {
	if err := validation.Profile(form); err != nil {
		return err
	}
	age, _ := validation.ParseAge(form.Age)

	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return backend.ErrUnauthenticated
	}
	id := *c.identity
	last := c.view
	c.mu.Unlock()
	register := c.recordMissing(ctx, id.UID, last)

	name := strings.TrimSpace(form.Name)
	email := strings.ToLower(strings.TrimSpace(form.Email))

	steps := []struct {
		step  Step
		apply bool
		run   func() error
	}{
		{StepDisplayName, name != id.DisplayName, func() error { return c.ids.UpdateDisplayName(ctx, name) }},
		{StepEmail, email != strings.ToLower(id.Email), func() error { return c.ids.UpdateEmail(ctx, email) }},
		{StepCredential, form.NewPassword != "", func() error { return c.ids.UpdateCredential(ctx, form.NewPassword) }},
	}

	// The document mirrors the identity: a rejected or skipped step keeps
	// the identity's current value.
	docName, docEmail := id.DisplayName, strings.ToLower(id.Email)
	var failed *SaveError
	for _, s := range steps {
		if !s.apply {
			continue
		}
		if err := s.run(); err != nil {
			c.logger.Warn(ctx, "profile save step failed", "step", s.step.String(), "error", err)
			failed = &SaveError{Step: s.step, Err: err}
			break
		}
		switch s.step {
		case StepDisplayName:
			docName = name
		case StepEmail:
			docEmail = email
		}
		c.applyIdentity(id.UID, s.step, name, email)
	}

	now := c.now()
	fields := backend.Document{
		fieldUID:        id.UID,
		fieldName:       docName,
		fieldEmail:      docEmail,
		fieldAge:        age,
		fieldSpecialty:  strings.TrimSpace(form.Specialty),
		fieldModifiedAt: formatTime(now),
	}
	if register {
		fields[fieldRegisteredAt] = formatTime(now)
		fields[fieldActive] = true
	}

	if err := c.store.Set(ctx, common.CollectionProfiles, id.UID, fields, true); err != nil {
		c.logger.Warn(ctx, "profile document write failed", "error", err)
		if failed != nil {
			failed.StoreErr = err
			return failed
		}
		return &SaveError{Step: StepDocument, Err: err}
	}

	select {
	case <-c.Refresh(ctx):
	case <-ctx.Done():
	}

	if failed != nil {
		return failed
	}
	return nil
}

// recordMissing reports whether the profile document of uid does not exist
// yet, so a save has to create it with its registration fields. The last
// view answers when it came from a completed fetch; otherwise the store is
// asked, and an unreachable store counts as "exists" so a registration date
// is never overwritten.
func (c *Controller) recordMissing(ctx context.Context, uid string, last View) bool {
	if last.AccountID == uid {
		switch {
		case last.Status == Unregistered:
			return true
		case last.Status == Fresh || last.Stale:
			return false
		}
	}
	gctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.store.Get(gctx, common.CollectionProfiles, uid)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		c.logger.Warn(ctx, "profile existence check failed", "error", err)
	}
	return errors.Is(err, backend.ErrNotFound)
}

// applyIdentity mirrors a successful identity step into the loaded identity
// so later minimal views show it.
func (c *Controller) applyIdentity(uid string, step Step, name, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil || c.identity.UID != uid {
		return
	}
	id := *c.identity
	switch step {
	case StepDisplayName:
		id.DisplayName = name
	case StepEmail:
		id.Email = email
		id.EmailVerified = false
	}
	c.identity = &id
}

// SetAvatar records key as the profile picture and refreshes. The profile
// record must already exist.
func (c *Controller) SetAvatar(ctx context.Context, key string) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return backend.ErrUnauthenticated
	}
	uid := c.identity.UID
	c.mu.Unlock()

	fields := backend.Document{fieldAvatarKey: key, fieldModifiedAt: formatTime(c.now())}
	if err := c.store.Update(ctx, common.CollectionProfiles, uid, fields); err != nil {
		return err
	}
	select {
	case <-c.Refresh(ctx):
	case <-ctx.Done():
	}
	return nil
}
