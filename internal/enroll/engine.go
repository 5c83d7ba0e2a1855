// Package enroll holds the pure enrollment policy: given the live occupancy
// counts of a session, decide where a join lands. The transactional half
// (locking, counting, writing) lives in the repository; this package never
// touches storage so the policy is testable in isolation.
package enroll

import "sessionhub/internal/model"

// Decision is the outcome of a join request.
type Decision int

const (
	// DecisionJoined admits the member into a capacity slot.
	DecisionJoined Decision = iota
	// DecisionWaitlisted queues the member behind the capacity limit.
	DecisionWaitlisted
	// DecisionRejected means both capacity and waitlist are full.
	DecisionRejected
)

// Decide computes the join outcome from counts taken at the moment of
// action. Callers must hold the session row lock while counting and acting,
// otherwise two joins near the boundary can both be admitted.
func Decide(joined, waitlisted, maxCapacity, maxWaitlist int) Decision {
	if joined < maxCapacity {
		return DecisionJoined
	}
	if waitlisted < maxWaitlist {
		return DecisionWaitlisted
	}
	return DecisionRejected
}

// Status maps a non-rejected decision onto the participation status a new
// row is created with.
func (d Decision) Status() model.ParticipationStatus {
	if d == DecisionWaitlisted {
		return model.ParticipationWaitlisted
	}
	return model.ParticipationJoined
}

// CapacityWarnings reports the non-fatal warnings for a capacity change.
// Lowering a limit below current occupancy is accepted and existing
// participants are never trimmed, but the caller is told about it.
func CapacityWarnings(joined, waitlisted, maxCapacity, maxWaitlist int) []string {
	var warnings []string
	if joined > maxCapacity {
		warnings = append(warnings, "max_capacity is below the current number of joined participants")
	}
	if waitlisted > maxWaitlist {
		warnings = append(warnings, "max_waitlist is below the current number of waitlisted participants")
	}
	return warnings
}

// ShouldPromote reports whether cancelling a participation with the given
// status frees a capacity slot that the oldest waitlisted member may take.
// The joined count is taken after the cancellation, under the same lock as
// the counts fed to Decide. Promotion never runs for sessions already
// cancelled or completed, and never while joined is still at or over
// maxCapacity: a tolerated capacity shrink can leave the session overfull,
// and cancellations then only drain the excess.
func ShouldPromote(cancelled model.ParticipationStatus, session model.SessionStatus, joined, maxCapacity int) bool {
	return cancelled == model.ParticipationJoined && !session.IsTerminal() && joined < maxCapacity
}
