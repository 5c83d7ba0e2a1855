package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"sessionhub/internal/dto"
	"sessionhub/internal/enroll"
	"sessionhub/internal/model"
	"sessionhub/internal/repo"
	"sessionhub/pkg/validator"
)

func (s *service) CreateSession(ctx *ginext.Context) {
	if !s.requireAdmin(ctx) {
		return
	}
	orgID, ok := s.orgID(ctx)
	if !ok {
		return
	}

	var req dto.CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse create session request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	joinMode := model.JoinModeOpen
	if req.JoinMode != "" {
		var err error
		joinMode, err = model.ParseJoinMode(req.JoinMode)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
			return
		}
	}

	if req.ActivityID != nil {
		if _, err := s.repo.GetActivity(ctx.Request.Context(), orgID, *req.ActivityID); err != nil {
			s.respondDomainError(ctx, err)
			return
		}
	}

	session := &model.Session{
		OrganizationID: orgID,
		ActivityID:     req.ActivityID,
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		DateTime:       req.DateTime,
		MaxCapacity:    req.MaxCapacity,
		MaxWaitlist:    req.MaxWaitlist,
		JoinMode:       joinMode,
		Status:         model.SessionDraft,
	}

	if err := s.repo.CreateSession(ctx.Request.Context(), session); err != nil {
		s.log.Error().Err(err).Msg("failed to create session in DB")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("session_id", session.ID.String()).Msg("session created successfully")
	dto.SuccessCreatedResponse(ctx, dto.NewSessionResponse(session))
}

func (s *service) ListSessions(ctx *ginext.Context) {
	orgID, ok := s.orgID(ctx)
	if !ok {
		return
	}

	var activityID *uuid.UUID
	if raw := ctx.Query("activity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid activity ID")
			return
		}
		activityID = &id
	}

	sessions, err := s.repo.ListSessions(ctx.Request.Context(), orgID, activityID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list sessions")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		item := dto.NewSessionResponse(&sessions[i])

		joined, waitlisted, err := s.repo.CountParticipations(ctx.Request.Context(), sessions[i].ID)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to count participations for session")
			continue
		}
		item.JoinedCount = &joined
		item.WaitlistCount = &waitlisted

		resp = append(resp, item)
	}

	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetSession(ctx *ginext.Context) {
	guard, ok := s.guard(ctx)
	if !ok {
		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid session ID")
		return
	}

	session, err := guard.RequireSession(ctx.Request.Context(), id)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	joined, waitlisted, err := s.repo.CountParticipations(ctx.Request.Context(), session.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to count participations")
		dto.InternalServerError(ctx)
		return
	}

	resp := dto.NewSessionResponse(session)
	resp.JoinedCount = &joined
	resp.WaitlistCount = &waitlisted
	dto.SuccessResponse(ctx, resp)
}

func (s *service) UpdateSession(ctx *ginext.Context) {
	if !s.requireAdmin(ctx) {
		return
	}
	guard, ok := s.guard(ctx)
	if !ok {
		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid session ID")
		return
	}

	var req dto.UpdateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	session, err := guard.RequireSessionForMutation(ctx.Request.Context(), id)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	patch := repo.SessionPatch{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		MaxCapacity: req.MaxCapacity,
		MaxWaitlist: req.MaxWaitlist,
	}
	if req.JoinMode != nil {
		joinMode, err := model.ParseJoinMode(*req.JoinMode)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
			return
		}
		patch.JoinMode = &joinMode
	}

	// Date changes run through the conflict gate; everything else is a
	// plain field patch.
	if req.DateTime != nil && !req.DateTime.Equal(session.DateTime) {
		if err := s.repo.RescheduleSessionTx(ctx.Request.Context(), session.ID, *req.DateTime); err != nil {
			s.respondDomainError(ctx, err)
			return
		}
	}

	if err := s.repo.UpdateSessionFields(ctx.Request.Context(), session.ID, patch); err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	updated, err := guard.RequireSession(ctx.Request.Context(), session.ID)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	resp := dto.NewSessionResponse(updated)
	if req.MaxCapacity != nil || req.MaxWaitlist != nil {
		joined, waitlisted, err := s.repo.CountParticipations(ctx.Request.Context(), session.ID)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to count participations for capacity warning")
			dto.InternalServerError(ctx)
			return
		}
		// Shrinking below occupancy is allowed but reported; nobody gets
		// kicked out because the limit moved.
		resp.Warnings = enroll.CapacityWarnings(joined, waitlisted, updated.MaxCapacity, updated.MaxWaitlist)
		resp.JoinedCount = &joined
		resp.WaitlistCount = &waitlisted
	}

	s.log.Info().Str("session_id", session.ID.String()).Msg("session updated successfully")
	dto.SuccessResponse(ctx, resp)
}

func (s *service) UpdateSessionStatus(ctx *ginext.Context) {
	if !s.requireAdmin(ctx) {
		return
	}
	guard, ok := s.guard(ctx)
	if !ok {
		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid session ID")
		return
	}

	var req dto.UpdateSessionStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	to, err := model.ParseSessionStatus(req.Status)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
		return
	}

	session, err := guard.RequireSessionForMutation(ctx.Request.Context(), id)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	if err := model.AssertSessionTransition(session.Status, to); err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	if err := s.repo.UpdateSessionStatus(ctx.Request.Context(), session.ID, to); err != nil {
		s.respondDomainError(ctx, err)
		return
	}
	session.Status = to

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("status", string(to)).
		Msg("session status updated")

	if to == model.SessionPublished {
		s.publishReminder(session)
	}

	dto.SuccessResponse(ctx, dto.NewSessionResponse(session))
}
