package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"sessionhub/internal/enroll"
	"sessionhub/internal/model"
)

const participationColumns = `id, session_id, user_id, status, attendance, payment,
	       admin_notes, created_at, updated_at`

func scanParticipation(row *sql.Row) (*model.Participation, error) {
	var p model.Participation
	err := row.Scan(
		&p.ID, &p.SessionID, &p.UserID, &p.Status, &p.Attendance, &p.Payment,
		&p.AdminNotes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrParticipationNotFound
		}
		return nil, fmt.Errorf("failed to scan participation: %w", err)
	}
	return &p, nil
}

// JoinSessionTx runs the capacity-bounded join decision: lock the session
// row, count live occupancy, decide, insert. One transaction, so two
// concurrent joins at the capacity boundary cannot both be admitted.
func (r *repository) JoinSessionTx(ctx context.Context, sessionID, userID uuid.UUID) (*model.Participation, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var status model.SessionStatus
	var maxCapacity, maxWaitlist int
	err = tx.QueryRowContext(ctx, `
		SELECT status, max_capacity, max_waitlist
		FROM sessions
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, sessionID).Scan(&status, &maxCapacity, &maxWaitlist)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}

	if status != model.SessionPublished {
		_ = tx.Rollback()
		return nil, model.ErrSessionNotJoinable
	}

	var joined, waitlisted int
	err = tx.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'joined'),
			COUNT(*) FILTER (WHERE status = 'waitlisted')
		FROM participations
		WHERE session_id = $1
	`, sessionID).Scan(&joined, &waitlisted)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to count participations: %w", err)
	}

	decision := enroll.Decide(joined, waitlisted, maxCapacity, maxWaitlist)
	if decision == enroll.DecisionRejected {
		_ = tx.Rollback()
		return nil, model.ErrCapacityExceeded
	}

	p := &model.Participation{
		SessionID: sessionID,
		UserID:    userID,
		Status:    decision.Status(),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO participations (session_id, user_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, attendance, payment, admin_notes, created_at, updated_at
	`, p.SessionID, p.UserID, p.Status).Scan(
		&p.ID, &p.Attendance, &p.Payment, &p.AdminNotes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return nil, model.ErrDuplicateParticipation
		}
		return nil, fmt.Errorf("failed to insert participation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit join transaction: %w", err)
	}
	return p, nil
}

// CancelParticipationTx cancels a participation and, when the cancelled row
// held a capacity slot in a still-active session, promotes exactly the
// oldest waitlisted row (ties broken by id) within the same transaction.
func (r *repository) CancelParticipationTx(ctx context.Context, id uuid.UUID) (*model.Participation, *model.Participation, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var p model.Participation
	var sessionStatus model.SessionStatus
	var maxCapacity int
	err = tx.QueryRowContext(ctx, `
		SELECT p.id, p.session_id, p.user_id, p.status, s.status, s.max_capacity
		FROM participations p
		JOIN sessions s ON s.id = p.session_id
		WHERE p.id = $1
		FOR UPDATE OF p, s
	`, id).Scan(&p.ID, &p.SessionID, &p.UserID, &p.Status, &sessionStatus, &maxCapacity)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, model.ErrParticipationNotFound
		}
		return nil, nil, fmt.Errorf("failed to lock participation: %w", err)
	}

	if err := model.AssertParticipationTransition(p.Status, model.ParticipationCancelled); err != nil {
		_ = tx.Rollback()
		return nil, nil, err
	}
	cancelledFrom := p.Status

	err = tx.QueryRowContext(ctx, `
		UPDATE participations
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1
		RETURNING attendance, payment, admin_notes, created_at, updated_at
	`, p.ID).Scan(&p.Attendance, &p.Payment, &p.AdminNotes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		_ = tx.Rollback()
		return nil, nil, fmt.Errorf("failed to cancel participation: %w", err)
	}
	p.Status = model.ParticipationCancelled

	// Occupancy after the cancel decides promotion: a session left overfull
	// by a capacity shrink must drain back below the limit first.
	var joined int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM participations
		WHERE session_id = $1 AND status = 'joined'
	`, p.SessionID).Scan(&joined)
	if err != nil {
		_ = tx.Rollback()
		return nil, nil, fmt.Errorf("failed to count joined participations: %w", err)
	}
	freedSlot := enroll.ShouldPromote(cancelledFrom, sessionStatus, joined, maxCapacity)

	var promoted *model.Participation
	if freedSlot {
		// A single vacancy promotes at most one waitlisted member.
		var candidateID uuid.UUID
		err = tx.QueryRowContext(ctx, `
			SELECT id
			FROM participations
			WHERE session_id = $1 AND status = 'waitlisted'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE
		`, p.SessionID).Scan(&candidateID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// waitlist empty, nothing to promote
		case err != nil:
			_ = tx.Rollback()
			return nil, nil, fmt.Errorf("failed to select promotion candidate: %w", err)
		default:
			if err := model.AssertParticipationTransition(model.ParticipationWaitlisted, model.ParticipationJoined); err != nil {
				_ = tx.Rollback()
				return nil, nil, err
			}
			promoted = &model.Participation{}
			err = tx.QueryRowContext(ctx, `
				UPDATE participations
				SET status = 'joined', updated_at = NOW()
				WHERE id = $1
				RETURNING id, session_id, user_id, status, attendance, payment, admin_notes, created_at, updated_at
			`, candidateID).Scan(
				&promoted.ID, &promoted.SessionID, &promoted.UserID, &promoted.Status,
				&promoted.Attendance, &promoted.Payment, &promoted.AdminNotes,
				&promoted.CreatedAt, &promoted.UpdatedAt,
			)
			if err != nil {
				_ = tx.Rollback()
				return nil, nil, fmt.Errorf("failed to promote waitlisted participation: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit cancel transaction: %w", err)
	}
	return &p, promoted, nil
}

// GetParticipation fetches filtered by the parent session's organization.
func (r *repository) GetParticipation(ctx context.Context, orgID, id uuid.UUID) (*model.Participation, error) {
	query := `
		SELECT p.id, p.session_id, p.user_id, p.status, p.attendance, p.payment,
		       p.admin_notes, p.created_at, p.updated_at
		FROM participations p
		JOIN sessions s ON s.id = p.session_id
		WHERE p.id = $1 AND s.organization_id = $2 AND s.deleted_at IS NULL
	`
	return scanParticipation(r.db.QueryRowContext(ctx, query, id, orgID))
}

// GetParticipationAny fetches by id with no organization filter, returning
// the parent session's organization so the scope guard can compare it.
func (r *repository) GetParticipationAny(ctx context.Context, id uuid.UUID) (*model.Participation, uuid.UUID, error) {
	query := `
		SELECT p.id, p.session_id, p.user_id, p.status, p.attendance, p.payment,
		       p.admin_notes, p.created_at, p.updated_at, s.organization_id
		FROM participations p
		JOIN sessions s ON s.id = p.session_id
		WHERE p.id = $1
	`
	var p model.Participation
	var orgID uuid.UUID
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.SessionID, &p.UserID, &p.Status, &p.Attendance, &p.Payment,
		&p.AdminNotes, &p.CreatedAt, &p.UpdatedAt, &orgID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, uuid.Nil, model.ErrParticipationNotFound
		}
		return nil, uuid.Nil, fmt.Errorf("failed to scan participation: %w", err)
	}
	return &p, orgID, nil
}

func (r *repository) ListRoster(ctx context.Context, sessionID uuid.UUID) ([]model.RosterEntry, error) {
	query := `
		SELECT p.id, p.session_id, p.user_id, p.status, p.attendance, p.payment,
		       p.admin_notes, p.created_at, p.updated_at, u.display_name, u.email
		FROM participations p
		JOIN users u ON u.id = p.user_id
		WHERE p.session_id = $1
		ORDER BY p.created_at ASC, p.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	defer rows.Close()

	var entries []model.RosterEntry
	for rows.Next() {
		var e model.RosterEntry
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.UserID, &e.Status, &e.Attendance, &e.Payment,
			&e.AdminNotes, &e.CreatedAt, &e.UpdatedAt, &e.DisplayName, &e.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan roster entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func (r *repository) CountParticipations(ctx context.Context, sessionID uuid.UUID) (int, int, error) {
	var joined, waitlisted int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'joined'),
			COUNT(*) FILTER (WHERE status = 'waitlisted')
		FROM participations
		WHERE session_id = $1
	`, sessionID).Scan(&joined, &waitlisted)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count participations: %w", err)
	}
	return joined, waitlisted, nil
}

func (r *repository) UpdateParticipationAdmin(ctx context.Context, id uuid.UUID, patch ParticipationPatch) error {
	set := ""
	args := []interface{}{}
	argID := 1

	add := func(column string, value interface{}) {
		if set != "" {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", column, argID)
		args = append(args, value)
		argID++
	}

	if patch.Attendance != nil {
		add("attendance", *patch.Attendance)
	}
	if patch.Payment != nil {
		add("payment", *patch.Payment)
	}
	if patch.AdminNotes != nil {
		add("admin_notes", *patch.AdminNotes)
	}
	if set == "" {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE participations
		SET %s, updated_at = NOW()
		WHERE id = $%d
		RETURNING id
	`, set, argID)
	args = append(args, id)

	var returned uuid.UUID
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&returned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrParticipationNotFound
		}
		return fmt.Errorf("failed to update participation: %w", err)
	}
	return nil
}
