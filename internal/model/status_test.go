package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionStatus(t *testing.T) {
	for _, valid := range []string{"draft", "published", "cancelled", "completed"} {
		got, err := ParseSessionStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, SessionStatus(valid), got)
	}

	for _, invalid := range []string{"", "DRAFT", "archived", "live"} {
		_, err := ParseSessionStatus(invalid)
		assert.Error(t, err, "expected %q to be rejected", invalid)
	}
}

func TestParseParticipationStatus(t *testing.T) {
	for _, valid := range []string{"joined", "waitlisted", "cancelled"} {
		got, err := ParseParticipationStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, ParticipationStatus(valid), got)
	}

	_, err := ParseParticipationStatus("pending")
	assert.Error(t, err)
}

func TestParseAttendanceAndPayment(t *testing.T) {
	for _, valid := range []string{"pending", "show", "no_show"} {
		got, err := ParseAttendance(valid)
		require.NoError(t, err)
		assert.Equal(t, Attendance(valid), got)
	}
	_, err := ParseAttendance("noshow")
	assert.Error(t, err)

	for _, valid := range []string{"unpaid", "paid"} {
		got, err := ParsePayment(valid)
		require.NoError(t, err)
		assert.Equal(t, Payment(valid), got)
	}
	_, err = ParsePayment("refunded")
	assert.Error(t, err)
}

func TestParseJoinMode(t *testing.T) {
	for _, valid := range []string{"open", "approval_required", "invite_only"} {
		got, err := ParseJoinMode(valid)
		require.NoError(t, err)
		assert.Equal(t, JoinMode(valid), got)
	}

	_, err := ParseJoinMode("closed")
	assert.Error(t, err)
}
