package lockregistry

import (
	"errors"
	"fmt"
	"time"

	"github.com/sarchlab/powerlock/timing"
)

// User identifies the kind of client holding a lock.
type User uint8

// Known lock users.
const (
	UserUnknown User = iota
	UserSelf
	UserAction
	UserAPI
	UserOpenThread
)

func (u User) String() string {
	switch u {
	case UserSelf:
		return "self"
	case UserAction:
		return "action"
	case UserAPI:
		return "api"
	case UserOpenThread:
		return "openthread"
	default:
		return "unknown"
	}
}

// Type labels what a lock is held for. Every type counts toward the active
// lock count.
type Type uint8

// Lock types.
const (
	// TypeCPU keeps the CPU at its maximum frequency.
	TypeCPU Type = iota
	// TypeAPB keeps the peripheral bus at its maximum frequency.
	TypeAPB
	// TypeNoSleep only keeps the chip out of light sleep.
	TypeNoSleep
)

func (t Type) String() string {
	switch t {
	case TypeCPU:
		return "cpu"
	case TypeAPB:
		return "apb"
	case TypeNoSleep:
		return "no_sleep"
	default:
		return "undefined"
	}
}

// ErrUnknownType is returned by ParseType for names that are not a lock type.
var ErrUnknownType = errors.New("unknown lock type")

// ParseType converts the name of a lock type back to the Type.
func ParseType(name string) (Type, error) {
	for _, t := range []Type{TypeCPU, TypeAPB, TypeNoSleep} {
		if t.String() == name {
			return t, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// ErrUnknownHandle is returned by Lookup for handles whose token is gone.
var ErrUnknownHandle = errors.New("unknown lock handle")

// Token is one outstanding acquisition.
type Token struct {
	ID         string
	User       User
	Type       Type
	AcquiredAt timing.VTime

	// ExpiresAt is only meaningful when HasExpiry is set.
	ExpiresAt timing.VTime
	HasExpiry bool

	seq uint64
}

// ExpiredAt tells whether the token has expired at now.
func (t Token) ExpiredAt(now timing.VTime) bool {
	return t.HasExpiry && t.ExpiresAt <= now
}

// Remaining returns the time left before expiry, and false for tokens
// without expiry.
func (t Token) Remaining(now timing.VTime) (time.Duration, bool) {
	if !t.HasExpiry {
		return 0, false
	}

	if t.ExpiresAt <= now {
		return 0, true
	}

	return t.ExpiresAt.Sub(now), true
}

// Handle refers to a token. The zero Handle refers to nothing; releasing it
// is a no-op.
type Handle struct {
	id string
}

// ID returns the ID of the token the handle refers to.
func (h Handle) ID() string {
	return h.id
}

// IsZero tells if the handle refers to nothing.
func (h Handle) IsZero() bool {
	return h.id == ""
}
