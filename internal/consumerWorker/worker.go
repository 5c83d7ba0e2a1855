package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"sessionhub/internal/dto"
	"sessionhub/internal/mailer"
	"sessionhub/internal/model"
	"sessionhub/internal/rabbit"
	"sessionhub/internal/repo"
)

// Reader drains the notification queue: enrollment notices published after
// commit, and delayed session reminders that fire shortly before start.
type Reader struct {
	RMQ    *rabbit.Client
	repo   repo.Repository
	mail   *mailer.Mailer
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, repo repo.Repository, mail *mailer.Mailer) *Reader {
	return &Reader{
		RMQ:  rmq,
		repo: repo,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("Notification reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			var envelope dto.QueueEnvelope
			if err := json.Unmarshal(body, &envelope); err != nil {
				zlog.Logger.Error().
					Err(err).
					Msgf("Failed to unmarshal message: %s", string(body))
				return err
			}

			switch envelope.Type {
			case "participation_notice":
				return r.handleNotice(envelope.Payload)
			case "session_reminder":
				return r.handleReminder(cctx, envelope.Payload)
			default:
				zlog.Logger.Warn().Msgf("Unknown queue message type %q, dropping", envelope.Type)
				return nil
			}
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("Notification reader stopped by context")
	}()
}

func (r *Reader) handleNotice(payload []byte) error {
	var notice dto.ParticipationNotice
	if err := json.Unmarshal(payload, &notice); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to unmarshal participation notice")
		return err
	}

	zlog.Logger.Info().
		Str("kind", notice.Kind).
		Str("participation_id", notice.ParticipationID.String()).
		Str("session_id", notice.SessionID.String()).
		Msg("Received participation notice")

	if notice.Email == "" {
		return nil
	}

	if err := r.mail.SendParticipationEmail(notice.Kind, notice.SessionTitle, notice.Email); err != nil {
		zlog.Logger.Warn().
			Err(err).
			Str("email", notice.Email).
			Msg("Failed to send participation email")
	}
	return nil
}

func (r *Reader) handleReminder(ctx context.Context, payload []byte) error {
	var msg dto.SessionReminderMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to unmarshal session reminder")
		return err
	}

	session, err := r.repo.GetSessionAny(ctx, msg.SessionID)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("session_id", msg.SessionID.String()).
			Msg("Failed to get session for reminder")
		return nil
	}

	// The reminder may have outlived the session: cancelled, completed or
	// removed sessions get no mail.
	if session.DeletedAt != nil || session.Status != model.SessionPublished {
		zlog.Logger.Info().
			Str("session_id", session.ID.String()).
			Str("status", string(session.Status)).
			Msg("Session no longer active, skipping reminder")
		return nil
	}

	roster, err := r.repo.ListRoster(ctx, session.ID)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("session_id", session.ID.String()).
			Msg("Failed to get roster for reminder")
		return nil
	}

	sent := 0
	for _, entry := range roster {
		if entry.Status != model.ParticipationJoined || entry.Email == "" {
			continue
		}
		if err := r.mail.SendReminderEmail(session.Title, session.DateTime, entry.Email); err != nil {
			zlog.Logger.Warn().
				Err(err).
				Str("email", entry.Email).
				Msg("Failed to send reminder email")
			continue
		}
		sent++
	}

	zlog.Logger.Info().
		Str("session_id", session.ID.String()).
		Int("sent", sent).
		Msg("Session reminders sent")
	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
