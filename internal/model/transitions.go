package model

// The transition tables below are the single source of truth for status
// changes. Controllers and the repository must call AssertTransition before
// persisting any status change; none of them special-cases an edge.

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionDraft:     {SessionPublished, SessionCancelled},
	SessionPublished: {SessionCompleted, SessionCancelled},
	// cancelled and completed are terminal
	SessionCancelled: nil,
	SessionCompleted: nil,
}

var participationTransitions = map[ParticipationStatus][]ParticipationStatus{
	ParticipationJoined:     {ParticipationCancelled},
	ParticipationWaitlisted: {ParticipationJoined, ParticipationCancelled},
	// cancelled is terminal; re-joining creates a new participation row
	ParticipationCancelled: nil,
}

// CanSessionTransition reports whether from→to is an allowed session edge.
func CanSessionTransition(from, to SessionStatus) bool {
	for _, allowed := range sessionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanParticipationTransition reports whether from→to is an allowed
// participation edge.
func CanParticipationTransition(from, to ParticipationStatus) bool {
	for _, allowed := range participationTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AssertSessionTransition fails with *InvalidTransitionError when the edge
// is not in the table.
func AssertSessionTransition(from, to SessionStatus) error {
	if !CanSessionTransition(from, to) {
		return &InvalidTransitionError{Kind: "session", From: string(from), To: string(to)}
	}
	return nil
}

// AssertParticipationTransition fails with *InvalidTransitionError when the
// edge is not in the table.
func AssertParticipationTransition(from, to ParticipationStatus) error {
	if !CanParticipationTransition(from, to) {
		return &InvalidTransitionError{Kind: "participation", From: string(from), To: string(to)}
	}
	return nil
}
