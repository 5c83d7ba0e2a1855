package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"sessionhub/internal/model"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	SessionNotFound         = "SESSION_NOT_FOUND"
	ParticipationNotFound   = "PARTICIPATION_NOT_FOUND"
	Forbidden               = "FORBIDDEN"
	InvalidTransition       = "INVALID_TRANSITION"
	CapacityExceeded        = "CAPACITY_EXCEEDED"
	ConflictingParticipants = "CONFLICTING_PARTICIPANTS"
	ParticipationDuplicate  = "PARTICIPATION_DUPLICATE"
	SessionNotJoinable      = "SESSION_NOT_JOINABLE"
)

type CreateSessionRequest struct {
	ActivityID  *uuid.UUID `json:"activity_id"`
	Title       string     `json:"title" validate:"required,min=3,max=255"`
	Description string     `json:"description" validate:"max=2000"`
	Location    string     `json:"location" validate:"max=255"`
	DateTime    time.Time  `json:"date_time" validate:"required,future"`
	MaxCapacity int        `json:"max_capacity" validate:"required,positive"`
	MaxWaitlist int        `json:"max_waitlist" validate:"gte=0"`
	JoinMode    string     `json:"join_mode"`
}

type UpdateSessionRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Location    *string    `json:"location" validate:"omitempty,max=255"`
	DateTime    *time.Time `json:"date_time"`
	MaxCapacity *int       `json:"max_capacity" validate:"omitempty,positive"`
	MaxWaitlist *int       `json:"max_waitlist" validate:"omitempty,gte=0"`
	JoinMode    *string    `json:"join_mode"`
}

type UpdateSessionStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type UpdateParticipationRequest struct {
	Attendance *string `json:"attendance"`
	Payment    *string `json:"payment"`
	AdminNotes *string `json:"admin_notes" validate:"omitempty,max=2000"`
}

type BulkAttendanceItem struct {
	ParticipationID uuid.UUID `json:"participation_id" validate:"required"`
	Attendance      string    `json:"attendance" validate:"required"`
}

type BulkAttendanceRequest struct {
	Items []BulkAttendanceItem `json:"items" validate:"required,min=1,max=200,dive"`
}

type MoveParticipantRequest struct {
	TargetSessionID uuid.UUID `json:"target_session_id" validate:"required"`
}

type SessionResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	ActivityID     *uuid.UUID `json:"activity_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location,omitempty"`
	DateTime       time.Time  `json:"date_time"`
	MaxCapacity    int        `json:"max_capacity"`
	MaxWaitlist    int        `json:"max_waitlist"`
	JoinMode       string     `json:"join_mode"`
	Status         string     `json:"status"`
	JoinedCount    *int       `json:"joined_count,omitempty"`
	WaitlistCount  *int       `json:"waitlist_count,omitempty"`
	Warnings       []string   `json:"warnings,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type ParticipationResponse struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	UserID     uuid.UUID `json:"user_id"`
	Status     string    `json:"status"`
	Attendance string    `json:"attendance"`
	Payment    string    `json:"payment"`
	AdminNotes string    `json:"admin_notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RosterEntryResponse struct {
	ParticipationResponse
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type BulkAttendanceFailure struct {
	ParticipationID uuid.UUID `json:"participation_id"`
	Reason          string    `json:"reason"`
}

type BulkAttendanceResponse struct {
	Updated  int                     `json:"updated"`
	Failures []BulkAttendanceFailure `json:"failures,omitempty"`
}

type MoveParticipantResponse struct {
	Cancelled ParticipationResponse  `json:"cancelled"`
	Created   ParticipationResponse  `json:"created"`
	Promoted  *ParticipationResponse `json:"promoted,omitempty"`
}

type ConflictingParticipantsPayload struct {
	Count        int                            `json:"count"`
	Participants []model.ConflictingParticipant `json:"participants"`
}

// QueueEnvelope discriminates the message kinds sharing the notification
// queue.
type QueueEnvelope struct {
	Type    string          `json:"type"` // "participation_notice" | "session_reminder"
	Payload json.RawMessage `json:"payload"`
}

// ParticipationNotice travels through RabbitMQ to the notification worker.
type ParticipationNotice struct {
	Kind            string    `json:"kind"` // joined, waitlisted, promoted, cancelled
	ParticipationID uuid.UUID `json:"participation_id"`
	SessionID       uuid.UUID `json:"session_id"`
	SessionTitle    string    `json:"session_title"`
	DateTime        time.Time `json:"date_time"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
}

// SessionReminderMessage is published with a delay when a session goes
// published; the worker mails the joined roster when it fires.
type SessionReminderMessage struct {
	SessionID uuid.UUID `json:"session_id"`
	ExpireAt  time.Time `json:"expire_at"`
}

func NewSessionResponse(s *model.Session) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		ActivityID:     s.ActivityID,
		Title:          s.Title,
		Description:    s.Description,
		Location:       s.Location,
		DateTime:       s.DateTime,
		MaxCapacity:    s.MaxCapacity,
		MaxWaitlist:    s.MaxWaitlist,
		JoinMode:       string(s.JoinMode),
		Status:         string(s.Status),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func NewParticipationResponse(p *model.Participation) ParticipationResponse {
	return ParticipationResponse{
		ID:         p.ID,
		SessionID:  p.SessionID,
		UserID:     p.UserID,
		Status:     string(p.Status),
		Attendance: string(p.Attendance),
		Payment:    string(p.Payment),
		AdminNotes: p.AdminNotes,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Desc    string `json:"desc"`
	Details any    `json:"details,omitempty"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func ForbiddenError(c *ginext.Context, desc string) {
	c.JSON(403, Response{
		Status: "error",
		Error: &Error{
			Code: Forbidden,
			Desc: desc,
		},
	})
}

func NotFoundError(c *ginext.Context, code, desc string) {
	c.JSON(404, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func ConflictError(c *ginext.Context, code, desc string, details any) {
	c.JSON(409, Response{
		Status: "error",
		Error: &Error{
			Code:    code,
			Desc:    desc,
			Details: details,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
