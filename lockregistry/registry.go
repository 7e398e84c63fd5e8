// Package lockregistry keeps the reference-counted "stay awake, full speed"
// guarantee. Every acquisition is a token; the guarantee holds while at least
// one token is alive.
package lockregistry

import (
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/powerlock/hooking"
	"github.com/sarchlab/powerlock/id"
	"github.com/sarchlab/powerlock/timing"
)

// HookPosLockAcquired triggers after a token is created. The Item is the
// Token and the Detail is the active count after the change.
var HookPosLockAcquired = &hooking.HookPos{Name: "LockAcquired"}

// HookPosLockReleased triggers after a token is explicitly released.
var HookPosLockReleased = &hooking.HookPos{Name: "LockReleased"}

// HookPosLockExpired triggers after a tick removes an expired token.
var HookPosLockExpired = &hooking.HookPos{Name: "LockExpired"}

// CountListener is told the active count after every change of it.
type CountListener interface {
	ActiveCountChanged(activeCount int)
}

// AcquireOption customizes a single acquisition.
type AcquireOption func(*acquireRequest)

type acquireRequest struct {
	user        User
	lockType    Type
	duration    time.Duration
	hasDuration bool
}

// WithDuration makes the token expire d after it is acquired. A zero
// duration expires on the next tick.
func WithDuration(d time.Duration) AcquireOption {
	return func(r *acquireRequest) {
		r.duration = d
		r.hasDuration = true
	}
}

// WithUser labels the token with the client that holds it.
func WithUser(u User) AcquireOption {
	return func(r *acquireRequest) {
		r.user = u
	}
}

// WithType labels the token with the lock type.
func WithType(t Type) AcquireOption {
	return func(r *acquireRequest) {
		r.lockType = t
	}
}

// Registry holds the live tokens of one power management instance. It is not
// safe for concurrent use; it expects to be driven from a single event loop.
type Registry struct {
	hooking.HookableBase

	clock           timing.TimeTeller
	ids             id.Generator
	defaultDuration time.Duration
	hasDefault      bool
	listener        CountListener
	log             logr.Logger

	tokens  map[string]*Token
	nextSeq uint64
}

// Acquire creates a new token and returns its handle. It always succeeds.
func (r *Registry) Acquire(opts ...AcquireOption) Handle {
	req := acquireRequest{user: UserUnknown, lockType: TypeCPU}
	for _, opt := range opts {
		opt(&req)
	}

	if !req.hasDuration && r.hasDefault {
		req.duration = r.defaultDuration
		req.hasDuration = true
	}

	if req.duration < 0 {
		req.duration = 0
	}

	now := r.clock.Now()
	r.nextSeq++
	token := &Token{
		ID:         r.ids.Generate(),
		User:       req.user,
		Type:       req.lockType,
		AcquiredAt: now,
		HasExpiry:  req.hasDuration,
		seq:        r.nextSeq,
	}

	if token.HasExpiry {
		token.ExpiresAt = now.Add(req.duration)
	}

	r.tokens[token.ID] = token

	r.log.V(1).Info("acquired lock",
		"token", token.ID,
		"user", token.User.String(),
		"type", token.Type.String(),
		"count", len(r.tokens),
		"expires_at", expiryString(token))

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    HookPosLockAcquired,
		Item:   *token,
		Detail: len(r.tokens),
	})
	r.notify()

	return Handle{id: token.ID}
}

// Release removes the token the handle refers to. Releasing an unknown,
// expired, or already released handle does nothing.
func (r *Registry) Release(h Handle) {
	token, found := r.tokens[h.id]
	if !found {
		r.log.V(1).Info("ignoring release of unknown lock", "token", h.id)
		return
	}

	r.remove(token, HookPosLockReleased)
	r.notify()
}

// ReleaseLatest releases the most recently acquired live token held by user
// with the given type. It returns false if there was none.
func (r *Registry) ReleaseLatest(user User, lockType Type) bool {
	var latest *Token

	for _, t := range r.tokens {
		if t.User != user || t.Type != lockType {
			continue
		}

		if latest == nil || t.seq > latest.seq {
			latest = t
		}
	}

	if latest == nil {
		r.log.V(1).Info("ignoring release, user holds no lock",
			"user", user.String(), "type", lockType.String())
		return false
	}

	r.remove(latest, HookPosLockReleased)
	r.notify()

	return true
}

// Tick removes all the tokens that have expired at now and returns how many
// were removed. The listener is notified once for the whole batch.
func (r *Registry) Tick(now timing.VTime) int {
	expired := make([]*Token, 0)

	for _, t := range r.tokens {
		if t.ExpiredAt(now) {
			expired = append(expired, t)
		}
	}

	if len(expired) == 0 {
		return 0
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].seq < expired[j].seq
	})

	for _, t := range expired {
		r.remove(t, HookPosLockExpired)
	}

	r.notify()

	return len(expired)
}

func (r *Registry) remove(t *Token, pos *hooking.HookPos) {
	delete(r.tokens, t.ID)

	r.log.V(1).Info(pos.Name,
		"token", t.ID,
		"user", t.User.String(),
		"type", t.Type.String(),
		"count", len(r.tokens))

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    pos,
		Item:   *t,
		Detail: len(r.tokens),
	})
}

func (r *Registry) notify() {
	if r.listener != nil {
		r.listener.ActiveCountChanged(len(r.tokens))
	}
}

// SetListener replaces the count listener.
func (r *Registry) SetListener(l CountListener) {
	r.listener = l
}

// ActiveCount returns the number of live tokens.
func (r *Registry) ActiveCount() int {
	return len(r.tokens)
}

// CountByType returns the number of live tokens of a type.
func (r *Registry) CountByType(t Type) int {
	n := 0

	for _, token := range r.tokens {
		if token.Type == t {
			n++
		}
	}

	return n
}

// CountByUser returns the number of live tokens held by a user.
func (r *Registry) CountByUser(u User) int {
	n := 0

	for _, token := range r.tokens {
		if token.User == u {
			n++
		}
	}

	return n
}

// Lookup returns a copy of the token the handle refers to.
func (r *Registry) Lookup(h Handle) (Token, error) {
	token, found := r.tokens[h.id]
	if !found {
		return Token{}, ErrUnknownHandle
	}

	return *token, nil
}

// Tokens returns copies of the live tokens in acquisition order.
func (r *Registry) Tokens() []Token {
	list := make([]Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		list = append(list, *t)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].seq < list[j].seq
	})

	return list
}

// HasTimedTokens tells if any live token will expire on its own.
func (r *Registry) HasTimedTokens() bool {
	for _, t := range r.tokens {
		if t.HasExpiry {
			return true
		}
	}

	return false
}

// NextExpiry returns the earliest expiry among the live tokens.
func (r *Registry) NextExpiry() (timing.VTime, bool) {
	var next timing.VTime

	found := false

	for _, t := range r.tokens {
		if !t.HasExpiry {
			continue
		}

		if !found || t.ExpiresAt < next {
			next = t.ExpiresAt
			found = true
		}
	}

	return next, found
}

// DefaultDuration returns the lifetime given to tokens acquired without an
// explicit duration.
func (r *Registry) DefaultDuration() (time.Duration, bool) {
	return r.defaultDuration, r.hasDefault
}

func expiryString(t *Token) string {
	if !t.HasExpiry {
		return "never"
	}

	return t.ExpiresAt.String()
}
