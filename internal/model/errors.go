package model

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrParticipationNotFound = errors.New("participation not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrActivityNotFound      = errors.New("activity not found")

	// ErrForbidden means the entity exists but the caller's organization or
	// role does not permit access. Deliberately distinct from not-found.
	ErrForbidden = errors.New("forbidden")

	// ErrCapacityExceeded means both capacity and waitlist are full.
	ErrCapacityExceeded = errors.New("session capacity and waitlist are full")

	// ErrDuplicateParticipation is the storage-level uniqueness violation:
	// the user already holds a non-cancelled participation in the session.
	ErrDuplicateParticipation = errors.New("user already enrolled in this session")

	// ErrSessionNotJoinable covers joins against non-published sessions and
	// join modes that do not accept self-service enrollment.
	ErrSessionNotJoinable = errors.New("session does not accept joins")
)

// InvalidTransitionError is returned by AssertSessionTransition and
// AssertParticipationTransition for edges missing from the tables.
type InvalidTransitionError struct {
	Kind string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition %s -> %s", e.Kind, e.From, e.To)
}

// ConflictingParticipantsError blocks a reschedule. The participant list is
// part of the caller-visible contract so the admin UI can show who is
// blocked.
type ConflictingParticipantsError struct {
	Participants []ConflictingParticipant
}

func (e *ConflictingParticipantsError) Error() string {
	return fmt.Sprintf("%d participant(s) have another session at the new time", len(e.Participants))
}
