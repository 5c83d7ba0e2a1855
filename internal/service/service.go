package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"sessionhub/cmd/middleware"
	"sessionhub/internal/dto"
	"sessionhub/internal/model"
	"sessionhub/internal/rabbit"
	"sessionhub/internal/repo"
	"sessionhub/internal/scope"
)

// reminderLead is how long before a session's start the reminder fires.
const reminderLead = time.Hour

type Service interface {
	CreateSession(ctx *ginext.Context)
	ListSessions(ctx *ginext.Context)
	GetSession(ctx *ginext.Context)
	UpdateSession(ctx *ginext.Context)
	UpdateSessionStatus(ctx *ginext.Context)

	Join(ctx *ginext.Context)
	Cancel(ctx *ginext.Context)
	Roster(ctx *ginext.Context)
	UpdateParticipation(ctx *ginext.Context)
	BulkUpdateAttendance(ctx *ginext.Context)
	MoveParticipant(ctx *ginext.Context)
}

type service struct {
	repo repo.Repository
	log  *zerolog.Logger
	rbt  rabbit.Publisher
}

func NewService(repo repo.Repository, logger *zerolog.Logger, rbt rabbit.Publisher) Service {
	return &service{
		repo: repo,
		log:  logger,
		rbt:  rbt,
	}
}

// orgID pulls the caller's active organization out of the auth context. The
// false return means the 401 response has already been written.
func (s *service) orgID(ctx *ginext.Context) (uuid.UUID, bool) {
	orgID, ok := middleware.OrgID(ctx)
	if !ok {
		ctx.JSON(401, dto.Response{
			Status: "error",
			Error:  &dto.Error{Code: "UNAUTHORIZED", Desc: "missing auth context"},
		})
		return uuid.Nil, false
	}
	return orgID, true
}

// guard builds the organization scope guard for the authenticated caller.
// Every handler resolves its mutation target through it.
func (s *service) guard(ctx *ginext.Context) (*scope.Guard, bool) {
	orgID, ok := s.orgID(ctx)
	if !ok {
		return nil, false
	}
	return scope.NewGuard(s.repo, orgID), true
}

func (s *service) requireAdmin(ctx *ginext.Context) bool {
	if !middleware.IsAdmin(ctx) {
		dto.ForbiddenError(ctx, "admin role required")
		return false
	}
	return true
}

// respondDomainError translates the error taxonomy into wire responses. Raw
// storage errors never escape: anything unclassified is logged and reported
// as an opaque internal error.
func (s *service) respondDomainError(ctx *ginext.Context, err error) {
	var transition *model.InvalidTransitionError
	var conflicts *model.ConflictingParticipantsError

	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		dto.NotFoundError(ctx, dto.SessionNotFound, "Session not found")
	case errors.Is(err, model.ErrParticipationNotFound):
		dto.NotFoundError(ctx, dto.ParticipationNotFound, "Participation not found")
	case errors.Is(err, model.ErrUserNotFound):
		dto.NotFoundError(ctx, dto.FieldIncorrect, "User not found")
	case errors.Is(err, model.ErrActivityNotFound):
		dto.NotFoundError(ctx, dto.FieldIncorrect, "Activity not found")
	case errors.Is(err, model.ErrForbidden):
		dto.ForbiddenError(ctx, "Entity belongs to another organization")
	case errors.Is(err, model.ErrCapacityExceeded):
		dto.ConflictError(ctx, dto.CapacityExceeded, "Session capacity and waitlist are full", nil)
	case errors.Is(err, model.ErrDuplicateParticipation):
		dto.ConflictError(ctx, dto.ParticipationDuplicate, "You are already enrolled in this session", nil)
	case errors.Is(err, model.ErrSessionNotJoinable):
		dto.ConflictError(ctx, dto.SessionNotJoinable, "Session does not accept joins", nil)
	case errors.As(err, &transition):
		dto.ConflictError(ctx, dto.InvalidTransition, transition.Error(), nil)
	case errors.As(err, &conflicts):
		dto.ConflictError(ctx, dto.ConflictingParticipants, conflicts.Error(), dto.ConflictingParticipantsPayload{
			Count:        len(conflicts.Participants),
			Participants: conflicts.Participants,
		})
	default:
		s.log.Error().Err(err).Msg("unclassified error")
		dto.InternalServerError(ctx)
	}
}

// publishNotice tells the notification worker about an enrollment outcome.
// Delivery is best effort: a broker hiccup is logged, never surfaced to the
// member whose enrollment already committed.
func (s *service) publishNotice(kind string, p *model.Participation, session *model.Session) {
	user, err := s.repo.GetUser(context.Background(), p.UserID)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load user for notice")
		return
	}

	payload, err := json.Marshal(dto.ParticipationNotice{
		Kind:            kind,
		ParticipationID: p.ID,
		SessionID:       session.ID,
		SessionTitle:    session.Title,
		DateTime:        session.DateTime,
		Email:           user.Email,
		DisplayName:     user.DisplayName,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal participation notice")
		return
	}
	envelope, err := json.Marshal(dto.QueueEnvelope{Type: "participation_notice", Payload: payload})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal queue envelope")
		return
	}

	if err := s.rbt.Publish(envelope, 0); err != nil {
		s.log.Error().Err(err).Msg("failed to publish participation notice")
	}
}

// publishReminder schedules the delayed reminder message when a session is
// published. Sessions starting within the lead window get no reminder.
func (s *service) publishReminder(session *model.Session) {
	delay := time.Until(session.DateTime.Add(-reminderLead))
	if delay <= 0 {
		return
	}

	payload, err := json.Marshal(dto.SessionReminderMessage{
		SessionID: session.ID,
		ExpireAt:  session.DateTime,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal session reminder")
		return
	}
	envelope, err := json.Marshal(dto.QueueEnvelope{Type: "session_reminder", Payload: payload})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal queue envelope")
		return
	}

	if err := s.rbt.Publish(envelope, int(delay.Seconds())); err != nil {
		s.log.Error().Err(err).Msg("failed to publish session reminder")
	}
}
