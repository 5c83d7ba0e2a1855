package model

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	OrganizationID uuid.UUID     `db:"organization_id" json:"organization_id"`
	ActivityID     *uuid.UUID    `db:"activity_id" json:"activity_id,omitempty"`
	Title          string        `db:"title" json:"title"`
	Description    string        `db:"description,omitempty" json:"description,omitempty"`
	Location       string        `db:"location,omitempty" json:"location,omitempty"`
	DateTime       time.Time     `db:"date_time" json:"date_time"`
	MaxCapacity    int           `db:"max_capacity" json:"max_capacity"`
	MaxWaitlist    int           `db:"max_waitlist" json:"max_waitlist"`
	JoinMode       JoinMode      `db:"join_mode" json:"join_mode"`
	Status         SessionStatus `db:"status" json:"status"`
	DeletedAt      *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

type Participation struct {
	ID         uuid.UUID           `db:"id" json:"id"`
	SessionID  uuid.UUID           `db:"session_id" json:"session_id"`
	UserID     uuid.UUID           `db:"user_id" json:"user_id"`
	Status     ParticipationStatus `db:"status" json:"status"`
	Attendance Attendance          `db:"attendance" json:"attendance"`
	Payment    Payment             `db:"payment" json:"payment"`
	AdminNotes string              `db:"admin_notes,omitempty" json:"admin_notes,omitempty"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at" json:"updated_at"`
}

type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	Email          string    `db:"email" json:"email"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Activity is a sub-scope within an organization. Sessions may optionally be
// segmented by activity.
type Activity struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	Name           string          `db:"name" json:"name"`
	EnabledPlugins map[string]bool `db:"-" json:"enabled_plugins"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// RosterEntry is a participation joined with the member's user record.
type RosterEntry struct {
	Participation
	DisplayName string `db:"display_name" json:"display_name"`
	Email       string `db:"email" json:"email"`
}

// ConflictingParticipant identifies a member whose calendar blocks a session
// reschedule.
type ConflictingParticipant struct {
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
}
