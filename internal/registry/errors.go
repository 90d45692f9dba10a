package registry

import (
	"errors"
	"fmt"
)

// Kind discriminates enrollment failures.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindAlreadyEnrolled
	KindNotEnrolled
	KindFull
)

var (
	// ErrActivityNotFound indicates the referenced activity does not exist.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrAlreadyEnrolled indicates the participant is already signed up for the activity.
	ErrAlreadyEnrolled = errors.New("participant already signed up")
	// ErrNotEnrolled indicates the participant is not registered for the activity.
	ErrNotEnrolled = errors.New("participant not registered")
	// ErrActivityFull indicates the activity reached its capacity.
	ErrActivityFull = errors.New("activity is full")
	// ErrEmptyEmail indicates a blank participant identifier.
	ErrEmptyEmail = errors.New("email must not be empty")
)

// Error carries the failed operation's activity and participant.
type Error struct {
	Kind     Kind
	Activity string
	Email    string
}

func newError(kind Kind, activity, email string) *Error {
	return &Error{Kind: kind, Activity: activity, Email: email}
}

// Error returns the human-readable detail shown to callers.
func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("Activity %q not found", e.Activity)
	case KindAlreadyEnrolled:
		return fmt.Sprintf("%s is already signed up for %s", e.Email, e.Activity)
	case KindNotEnrolled:
		return fmt.Sprintf("%s is not registered for %s", e.Email, e.Activity)
	case KindFull:
		return fmt.Sprintf("%s is full: no spots left for %s", e.Activity, e.Email)
	default:
		return "enrollment failed"
	}
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrActivityNotFound:
		return e.Kind == KindNotFound
	case ErrAlreadyEnrolled:
		return e.Kind == KindAlreadyEnrolled
	case ErrNotEnrolled:
		return e.Kind == KindNotEnrolled
	case ErrActivityFull:
		return e.Kind == KindFull
	}
	return false
}
