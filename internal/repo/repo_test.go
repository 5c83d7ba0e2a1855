package repo

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionhub/internal/model"
)

func TestRescheduleSessionTx_NoConflicts(t *testing.T) {
	r, mock := newMockRepo(t)
	sessionID := uuid.New()
	newTime := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT date_time")).
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"date_time"}).AddRow(newTime.Add(-24 * time.Hour)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT u.id, u.display_name")).
		WithArgs(sessionID, newTime).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name"}))
	mock.ExpectExec(regexp.QuoteMeta("SET date_time = $1")).
		WithArgs(newTime, sessionID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := r.RescheduleSessionTx(context.Background(), sessionID, newTime)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleSessionTx_ConflictingParticipants(t *testing.T) {
	r, mock := newMockRepo(t)
	sessionID := uuid.New()
	newTime := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	alice, bob := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT date_time")).
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"date_time"}).AddRow(newTime.Add(-24 * time.Hour)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT u.id, u.display_name")).
		WithArgs(sessionID, newTime).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name"}).
			AddRow(alice, "Alice").
			AddRow(bob, "Bob"))
	mock.ExpectRollback()

	err := r.RescheduleSessionTx(context.Background(), sessionID, newTime)

	var conflicts *model.ConflictingParticipantsError
	require.ErrorAs(t, err, &conflicts)
	require.Len(t, conflicts.Participants, 2)
	assert.Equal(t, "Alice", conflicts.Participants[0].DisplayName)
	assert.Equal(t, "Bob", conflicts.Participants[1].DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleSessionTx_SessionNotFound(t *testing.T) {
	r, mock := newMockRepo(t)
	sessionID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT date_time")).
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"date_time"}))
	mock.ExpectRollback()

	err := r.RescheduleSessionTx(context.Background(), sessionID, time.Now())
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSessionFields_NoFieldsIsNoop(t *testing.T) {
	r, mock := newMockRepo(t)

	err := r.UpdateSessionFields(context.Background(), uuid.New(), SessionPatch{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSessionFields_NotFound(t *testing.T) {
	r, mock := newMockRepo(t)
	sessionID := uuid.New()
	title := "Evening drills"

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sessions")).
		WithArgs(title, sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := r.UpdateSessionFields(context.Background(), sessionID, SessionPatch{Title: &title})
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
