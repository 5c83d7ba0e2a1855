package mailer

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     string
	From     string
	Password string
}

type Mailer struct {
	cfg Config
	log *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// SendParticipationEmail notifies a member about an enrollment outcome.
func (m *Mailer) SendParticipationEmail(kind, sessionTitle, recipientEmail string) error {
	var subject, body string
	switch kind {
	case "joined":
		subject = "You're in: " + sessionTitle
		body = fmt.Sprintf("Hello!\n\nYou have a confirmed spot in \"%s\". See you there!", sessionTitle)
	case "waitlisted":
		subject = "Waitlisted: " + sessionTitle
		body = fmt.Sprintf("Hello!\n\n\"%s\" is currently full. You are on the waitlist and will be moved up automatically if a spot frees.", sessionTitle)
	case "promoted":
		subject = "A spot opened up: " + sessionTitle
		body = fmt.Sprintf("Hello!\n\nGood news: a spot freed up in \"%s\" and you have been moved from the waitlist to the roster.", sessionTitle)
	case "cancelled":
		subject = "Enrollment cancelled: " + sessionTitle
		body = fmt.Sprintf("Hello!\n\nYour enrollment in \"%s\" has been cancelled.", sessionTitle)
	default:
		return fmt.Errorf("unknown notice kind %q", kind)
	}

	return m.send(subject, body, recipientEmail)
}

// SendReminderEmail reminds a joined member shortly before the session.
func (m *Mailer) SendReminderEmail(sessionTitle string, startsAt time.Time, recipientEmail string) error {
	subject := "Reminder: " + sessionTitle
	body := fmt.Sprintf("Hello!\n\nA reminder that \"%s\" starts at %s.", sessionTitle, startsAt.Format(time.RFC1123))
	return m.send(subject, body, recipientEmail)
}

func (m *Mailer) send(subject, body, recipientEmail string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, recipientEmail, subject, body,
	)

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{recipientEmail}, []byte(msg)); err != nil {
		m.log.Warn().Msgf("failed to send email to %s: %v", recipientEmail, err)
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Msgf("Email sent to %s (subject: %s)", recipientEmail, subject)
	return nil
}
