package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"sessionhub/cmd/middleware"
	"sessionhub/internal/dto"
	"sessionhub/internal/model"
	"sessionhub/internal/repo"
	"sessionhub/pkg/validator"
)

func (s *service) Join(ctx *ginext.Context) {
	guard, ok := s.guard(ctx)
	if !ok {
		return
	}
	userID, ok := middleware.UserID(ctx)
	if !ok {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Missing user context")
		return
	}

	sessionID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid session ID")
		return
	}

	session, err := guard.RequireSession(ctx.Request.Context(), sessionID)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	// Self-service joins only for open sessions; approval_required and
	// invite_only run through an upstream gate or an admin.
	if session.JoinMode != model.JoinModeOpen {
		dto.ForbiddenError(ctx, "Session does not accept self-service joins")
		return
	}

	participation, err := s.repo.JoinSessionTx(ctx.Request.Context(), session.ID, userID)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	s.log.Info().
		Str("participation_id", participation.ID.String()).
		Str("session_id", session.ID.String()).
		Str("status", string(participation.Status)).
		Msg("participation created successfully")

	s.publishNotice(string(participation.Status), participation, session)

	dto.SuccessCreatedResponse(ctx, dto.NewParticipationResponse(participation))
}

func (s *service) Cancel(ctx *ginext.Context) {
	guard, ok := s.guard(ctx)
	if !ok {
		return
	}
	userID, ok := middleware.UserID(ctx)
	if !ok {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Missing user context")
		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid participation ID")
		return
	}

	// Members may only cancel their own enrollment; for them a foreign
	// record is indistinguishable from a non-existent one.
	var participation *model.Participation
	if middleware.IsAdmin(ctx) {
		participation, err = guard.RequireParticipationForMutation(ctx.Request.Context(), id)
	} else {
		participation, err = guard.RequireUserParticipation(ctx.Request.Context(), id, userID)
	}
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	cancelled, promoted, err := s.repo.CancelParticipationTx(ctx.Request.Context(), participation.ID)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	s.log.Info().
		Str("participation_id", cancelled.ID.String()).
		Bool("promoted", promoted != nil).
		Msg("participation cancelled")

	if session, err := s.repo.GetSessionAny(ctx.Request.Context(), cancelled.SessionID); err == nil {
		s.publishNotice("cancelled", cancelled, session)
		if promoted != nil {
			s.publishNotice("promoted", promoted, session)
		}
	} else {
		s.log.Warn().Err(err).Msg("failed to load session for cancellation notice")
	}

	resp := struct {
		Cancelled dto.ParticipationResponse  `json:"cancelled"`
		Promoted  *dto.ParticipationResponse `json:"promoted,omitempty"`
	}{
		Cancelled: dto.NewParticipationResponse(cancelled),
	}
	if promoted != nil {
		p := dto.NewParticipationResponse(promoted)
		resp.Promoted = &p
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) Roster(ctx *ginext.Context) {
	if !s.requireAdmin(ctx) {
		return
	}
	guard, ok := s.guard(ctx)
	if !ok {
		return
	}

	sessionID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid session ID")
		return
	}

	session, err := guard.RequireSession(ctx.Request.Context(), sessionID)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	entries, err := s.repo.ListRoster(ctx.Request.Context(), session.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get roster")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.RosterEntryResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, dto.RosterEntryResponse{
			ParticipationResponse: dto.NewParticipationResponse(&entries[i].Participation),
			DisplayName:           entries[i].DisplayName,
			Email:                 entries[i].Email,
		})
	}

	dto.SuccessResponse(ctx, resp)
}

func (s *service) UpdateParticipation(ctx *ginext.Context) {
	if !s.requireAdmin(ctx) {
		return
	}
	guard, ok := s.guard(ctx)
	if !ok {
		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid participation ID")
		return
	}

	var req dto.UpdateParticipationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	patch := repo.ParticipationPatch{AdminNotes: req.AdminNotes}
	if req.Attendance != nil {
		attendance, err := model.ParseAttendance(*req.Attendance)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
			return
		}
		patch.Attendance = &attendance
	}
	if req.Payment != nil {
		payment, err := model.ParsePayment(*req.Payment)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
			return
		}
		patch.Payment = &payment
	}

	participation, err := guard.RequireParticipationForMutation(ctx.Request.Context(), id)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	if err := s.repo.UpdateParticipationAdmin(ctx.Request.Context(), participation.ID, patch); err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	updated, err := guard.RequireParticipation(ctx.Request.Context(), participation.ID)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	s.log.Info().Str("participation_id", updated.ID.String()).Msg("participation updated by admin")
	dto.SuccessResponse(ctx, dto.NewParticipationResponse(updated))
}

// BulkUpdateAttendance applies a bounded batch of attendance updates. The
// policy is best effort per row: an invalid row lands in the failure list
// and never aborts its siblings.
func (s *service) BulkUpdateAttendance(ctx *ginext.Context) {
	if !s.requireAdmin(ctx) {
		return
	}
	guard, ok := s.guard(ctx)
	if !ok {
		return
	}

	sessionID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid session ID")
		return
	}

	var req dto.BulkAttendanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	session, err := guard.RequireSessionForMutation(ctx.Request.Context(), sessionID)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	resp := dto.BulkAttendanceResponse{}
	for _, item := range req.Items {
		attendance, err := model.ParseAttendance(item.Attendance)
		if err != nil {
			resp.Failures = append(resp.Failures, dto.BulkAttendanceFailure{
				ParticipationID: item.ParticipationID,
				Reason:          err.Error(),
			})
			continue
		}

		participation, err := guard.RequireParticipation(ctx.Request.Context(), item.ParticipationID)
		if err != nil {
			resp.Failures = append(resp.Failures, dto.BulkAttendanceFailure{
				ParticipationID: item.ParticipationID,
				Reason:          "participation not found",
			})
			continue
		}
		if participation.SessionID != session.ID {
			resp.Failures = append(resp.Failures, dto.BulkAttendanceFailure{
				ParticipationID: item.ParticipationID,
				Reason:          "participation belongs to another session",
			})
			continue
		}

		patch := repo.ParticipationPatch{Attendance: &attendance}
		if err := s.repo.UpdateParticipationAdmin(ctx.Request.Context(), participation.ID, patch); err != nil {
			s.log.Error().Err(err).
				Str("participation_id", participation.ID.String()).
				Msg("failed to update attendance")
			resp.Failures = append(resp.Failures, dto.BulkAttendanceFailure{
				ParticipationID: item.ParticipationID,
				Reason:          "update failed",
			})
			continue
		}
		resp.Updated++
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("updated", resp.Updated).
		Int("failed", len(resp.Failures)).
		Msg("bulk attendance update applied")

	dto.SuccessResponse(ctx, resp)
}

// MoveParticipant cancels the enrollment in its current session (promoting
// off the waitlist there if a slot frees) and re-runs the join decision in
// the target session. The two steps are independent transactions: a
// rejected target join leaves the source cancellation in place, exactly
// like two separate calls would.
func (s *service) MoveParticipant(ctx *ginext.Context) {
	if !s.requireAdmin(ctx) {
		return
	}
	guard, ok := s.guard(ctx)
	if !ok {
		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid participation ID")
		return
	}

	var req dto.MoveParticipantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	participation, err := guard.RequireParticipationForMutation(ctx.Request.Context(), id)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	target, err := guard.RequireSessionForMutation(ctx.Request.Context(), req.TargetSessionID)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	cancelled, promoted, err := s.repo.CancelParticipationTx(ctx.Request.Context(), participation.ID)
	if err != nil {
		s.respondDomainError(ctx, err)
		return
	}

	if source, err := s.repo.GetSessionAny(ctx.Request.Context(), cancelled.SessionID); err == nil {
		s.publishNotice("cancelled", cancelled, source)
		if promoted != nil {
			s.publishNotice("promoted", promoted, source)
		}
	}

	created, err := s.repo.JoinSessionTx(ctx.Request.Context(), target.ID, participation.UserID)
	if err != nil {
		// The source cancellation stands, as it would after two
		// independent calls.
		s.log.Warn().Err(err).
			Str("participation_id", participation.ID.String()).
			Str("target_session_id", target.ID.String()).
			Msg("move: target join rejected after source cancellation")
		s.respondDomainError(ctx, err)
		return
	}

	s.publishNotice(string(created.Status), created, target)

	s.log.Info().
		Str("participation_id", participation.ID.String()).
		Str("target_session_id", target.ID.String()).
		Str("new_participation_id", created.ID.String()).
		Msg("participant moved")

	resp := dto.MoveParticipantResponse{
		Cancelled: dto.NewParticipationResponse(cancelled),
		Created:   dto.NewParticipationResponse(created),
	}
	if promoted != nil {
		p := dto.NewParticipationResponse(promoted)
		resp.Promoted = &p
	}
	dto.SuccessResponse(ctx, resp)
}
