package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"sessionhub/internal/model"
)

// SessionPatch is a field-level update for a session. Nil fields are left
// untouched. Date and status changes do not travel through here: they have
// their own transactional paths.
type SessionPatch struct {
	Title       *string
	Description *string
	Location    *string
	MaxCapacity *int
	MaxWaitlist *int
	JoinMode    *model.JoinMode
}

// ParticipationPatch is the admin-only field update (no status machine
// involvement).
type ParticipationPatch struct {
	Attendance *model.Attendance
	Payment    *model.Payment
	AdminNotes *string
}

type Repository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, orgID, id uuid.UUID) (*model.Session, error)
	GetSessionAny(ctx context.Context, id uuid.UUID) (*model.Session, error)
	ListSessions(ctx context.Context, orgID uuid.UUID, activityID *uuid.UUID) ([]model.Session, error)
	UpdateSessionFields(ctx context.Context, id uuid.UUID, patch SessionPatch) error
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, to model.SessionStatus) error
	RescheduleSessionTx(ctx context.Context, id uuid.UUID, newTime time.Time) error

	JoinSessionTx(ctx context.Context, sessionID, userID uuid.UUID) (*model.Participation, error)
	CancelParticipationTx(ctx context.Context, id uuid.UUID) (cancelled, promoted *model.Participation, err error)
	GetParticipation(ctx context.Context, orgID, id uuid.UUID) (*model.Participation, error)
	GetParticipationAny(ctx context.Context, id uuid.UUID) (*model.Participation, uuid.UUID, error)
	ListRoster(ctx context.Context, sessionID uuid.UUID) ([]model.RosterEntry, error)
	CountParticipations(ctx context.Context, sessionID uuid.UUID) (joined, waitlisted int, err error)
	UpdateParticipationAdmin(ctx context.Context, id uuid.UUID, patch ParticipationPatch) error

	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetActivity(ctx context.Context, orgID, id uuid.UUID) (*model.Activity, error)

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const sessionColumns = `id, organization_id, activity_id, title, description, location,
	       date_time, max_capacity, max_waitlist, join_mode, status,
	       deleted_at, created_at, updated_at`

func scanSession(row *sql.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.ActivityID, &s.Title, &s.Description, &s.Location,
		&s.DateTime, &s.MaxCapacity, &s.MaxWaitlist, &s.JoinMode, &s.Status,
		&s.DeletedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}

func (r *repository) CreateSession(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (organization_id, activity_id, title, description, location,
		                      date_time, max_capacity, max_waitlist, join_mode, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowContext(ctx, query,
		s.OrganizationID, s.ActivityID, s.Title, s.Description, s.Location,
		s.DateTime, s.MaxCapacity, s.MaxWaitlist, s.JoinMode, s.Status,
	)
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession fetches filtered by organization and soft-delete. This is the
// read the scope guard exposes to regular callers.
func (r *repository) GetSession(ctx context.Context, orgID, id uuid.UUID) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`
	return scanSession(r.db.QueryRowContext(ctx, query, id, orgID))
}

// GetSessionAny fetches by id with no organization filter. Soft-deleted rows
// are returned with DeletedAt set; the scope guard decides what to do with
// them.
func (r *repository) GetSessionAny(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1
	`
	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

func (r *repository) ListSessions(ctx context.Context, orgID uuid.UUID, activityID *uuid.UUID) ([]model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE organization_id = $1 AND deleted_at IS NULL
	`
	args := []interface{}{orgID}
	if activityID != nil {
		query += ` AND activity_id = $2`
		args = append(args, *activityID)
	}
	query += ` ORDER BY date_time ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(
			&s.ID, &s.OrganizationID, &s.ActivityID, &s.Title, &s.Description, &s.Location,
			&s.DateTime, &s.MaxCapacity, &s.MaxWaitlist, &s.JoinMode, &s.Status,
			&s.DeletedAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, nil
}

func (r *repository) UpdateSessionFields(ctx context.Context, id uuid.UUID, patch SessionPatch) error {
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

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.MaxCapacity != nil {
		add("max_capacity", *patch.MaxCapacity)
	}
	if patch.MaxWaitlist != nil {
		add("max_waitlist", *patch.MaxWaitlist)
	}
	if patch.JoinMode != nil {
		add("join_mode", *patch.JoinMode)
	}
	if set == "" {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE sessions
		SET %s, updated_at = NOW()
		WHERE id = $%d AND deleted_at IS NULL
		RETURNING id
	`, set, argID)
	args = append(args, id)

	var returned uuid.UUID
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&returned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrSessionNotFound
		}
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (r *repository) UpdateSessionStatus(ctx context.Context, id uuid.UUID, to model.SessionStatus) error {
	query := `
		UPDATE sessions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING id
	`
	var returned uuid.UUID
	if err := r.db.QueryRowContext(ctx, query, to, id).Scan(&returned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrSessionNotFound
		}
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return nil
}

// RescheduleSessionTx moves a session to a new instant, unless any of its
// active participants already has another active session at exactly that
// instant. The lock, the conflict read and the write share one transaction
// so the gate cannot race a concurrent join.
func (r *repository) RescheduleSessionTx(ctx context.Context, id uuid.UUID, newTime time.Time) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var current time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT date_time
		FROM sessions
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, id).Scan(&current)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrSessionNotFound
		}
		return fmt.Errorf("failed to lock session: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT u.id, u.display_name
		FROM participations p
		JOIN users u ON u.id = p.user_id
		JOIN participations q ON q.user_id = p.user_id AND q.id <> p.id
		JOIN sessions s2 ON s2.id = q.session_id
		WHERE p.session_id = $1
		  AND p.status IN ('joined', 'waitlisted')
		  AND q.status IN ('joined', 'waitlisted')
		  AND s2.deleted_at IS NULL
		  AND s2.status NOT IN ('cancelled', 'completed')
		  AND s2.date_time = $2
		ORDER BY u.display_name
	`, id, newTime)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to query schedule conflicts: %w", err)
	}

	var conflicts []model.ConflictingParticipant
	for rows.Next() {
		var c model.ConflictingParticipant
		if err := rows.Scan(&c.UserID, &c.DisplayName); err != nil {
			rows.Close()
			_ = tx.Rollback()
			return fmt.Errorf("failed to scan schedule conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	rows.Close()

	if len(conflicts) > 0 {
		_ = tx.Rollback()
		return &model.ConflictingParticipantsError{Participants: conflicts}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET date_time = $1, updated_at = NOW()
		WHERE id = $2
	`, newTime, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update session date: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reschedule transaction: %w", err)
	}
	return nil
}

func (r *repository) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, organization_id, display_name, email, created_at
		FROM users
		WHERE id = $1
	`
	var u model.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.OrganizationID, &u.DisplayName, &u.Email, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *repository) GetActivity(ctx context.Context, orgID, id uuid.UUID) (*model.Activity, error) {
	query := `
		SELECT id, organization_id, name, enabled_plugins, created_at
		FROM activities
		WHERE id = $1 AND organization_id = $2
	`
	var a model.Activity
	var rawPlugins []byte
	err := r.db.QueryRowContext(ctx, query, id, orgID).Scan(
		&a.ID, &a.OrganizationID, &a.Name, &rawPlugins, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	a.EnabledPlugins, err = model.DecodeEnabledPlugins(rawPlugins)
	if err != nil {
		return nil, fmt.Errorf("activity %s: %w", id, err)
	}
	return &a, nil
}
