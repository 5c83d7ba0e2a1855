package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    SessionStatus
		to      SessionStatus
		allowed bool
	}{
		{"draft to published", SessionDraft, SessionPublished, true},
		{"draft to cancelled", SessionDraft, SessionCancelled, true},
		{"draft to completed", SessionDraft, SessionCompleted, false},
		{"published to completed", SessionPublished, SessionCompleted, true},
		{"published to cancelled", SessionPublished, SessionCancelled, true},
		{"published to draft", SessionPublished, SessionDraft, false},
		{"cancelled to published", SessionCancelled, SessionPublished, false},
		{"cancelled to draft", SessionCancelled, SessionDraft, false},
		{"completed to published", SessionCompleted, SessionPublished, false},
		{"completed to cancelled", SessionCompleted, SessionCancelled, false},
		{"draft to draft", SessionDraft, SessionDraft, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanSessionTransition(tc.from, tc.to))

			err := AssertSessionTransition(tc.from, tc.to)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			var transition *InvalidTransitionError
			require.ErrorAs(t, err, &transition)
			assert.Equal(t, "session", transition.Kind)
			assert.Equal(t, string(tc.from), transition.From)
			assert.Equal(t, string(tc.to), transition.To)
		})
	}
}

func TestParticipationTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    ParticipationStatus
		to      ParticipationStatus
		allowed bool
	}{
		{"joined to cancelled", ParticipationJoined, ParticipationCancelled, true},
		{"joined to waitlisted", ParticipationJoined, ParticipationWaitlisted, false},
		{"waitlisted to joined", ParticipationWaitlisted, ParticipationJoined, true},
		{"waitlisted to cancelled", ParticipationWaitlisted, ParticipationCancelled, true},
		{"cancelled to joined", ParticipationCancelled, ParticipationJoined, false},
		{"cancelled to waitlisted", ParticipationCancelled, ParticipationWaitlisted, false},
		{"cancelled to cancelled", ParticipationCancelled, ParticipationCancelled, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanParticipationTransition(tc.from, tc.to))

			err := AssertParticipationTransition(tc.from, tc.to)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			var transition *InvalidTransitionError
			require.ErrorAs(t, err, &transition)
			assert.Equal(t, "participation", transition.Kind)
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, SessionCancelled.IsTerminal())
	assert.True(t, SessionCompleted.IsTerminal())
	assert.False(t, SessionDraft.IsTerminal())
	assert.False(t, SessionPublished.IsTerminal())

	assert.True(t, ParticipationCancelled.IsTerminal())
	assert.False(t, ParticipationJoined.IsTerminal())
	assert.False(t, ParticipationWaitlisted.IsTerminal())

	assert.True(t, ParticipationJoined.IsActive())
	assert.True(t, ParticipationWaitlisted.IsActive())
	assert.False(t, ParticipationCancelled.IsActive())
}

func TestInvalidTransitionErrorIsNotSentinel(t *testing.T) {
	err := AssertSessionTransition(SessionCompleted, SessionPublished)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSessionNotFound))
	assert.Contains(t, err.Error(), "completed")
	assert.Contains(t, err.Error(), "published")
}
