package model

import "fmt"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionDraft     SessionStatus = "draft"
	SessionPublished SessionStatus = "published"
	SessionCancelled SessionStatus = "cancelled"
	SessionCompleted SessionStatus = "completed"
)

// ParticipationStatus is the lifecycle state of a member's enrollment.
type ParticipationStatus string

const (
	ParticipationJoined     ParticipationStatus = "joined"
	ParticipationWaitlisted ParticipationStatus = "waitlisted"
	ParticipationCancelled  ParticipationStatus = "cancelled"
)

// Attendance is tracked post-hoc by admins.
type Attendance string

const (
	AttendancePending Attendance = "pending"
	AttendanceShow    Attendance = "show"
	AttendanceNoShow  Attendance = "no_show"
)

// Payment is tracked post-hoc by admins.
type Payment string

const (
	PaymentUnpaid Payment = "unpaid"
	PaymentPaid   Payment = "paid"
)

// JoinMode controls who may enroll into a session.
type JoinMode string

const (
	JoinModeOpen             JoinMode = "open"
	JoinModeApprovalRequired JoinMode = "approval_required"
	JoinModeInviteOnly       JoinMode = "invite_only"
)

// IsTerminal reports whether no further session status transition is valid.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCancelled || s == SessionCompleted
}

// IsTerminal reports whether no further participation transition is valid.
func (s ParticipationStatus) IsTerminal() bool {
	return s == ParticipationCancelled
}

// IsActive reports whether the participation occupies a slot or a waitlist
// position.
func (s ParticipationStatus) IsActive() bool {
	return s == ParticipationJoined || s == ParticipationWaitlisted
}

// The Parse helpers validate untrusted input against the closed enumerations
// before it crosses into business logic.

func ParseSessionStatus(s string) (SessionStatus, error) {
	switch v := SessionStatus(s); v {
	case SessionDraft, SessionPublished, SessionCancelled, SessionCompleted:
		return v, nil
	}
	return "", fmt.Errorf("unknown session status %q", s)
}

func ParseParticipationStatus(s string) (ParticipationStatus, error) {
	switch v := ParticipationStatus(s); v {
	case ParticipationJoined, ParticipationWaitlisted, ParticipationCancelled:
		return v, nil
	}
	return "", fmt.Errorf("unknown participation status %q", s)
}

func ParseAttendance(s string) (Attendance, error) {
	switch v := Attendance(s); v {
	case AttendancePending, AttendanceShow, AttendanceNoShow:
		return v, nil
	}
	return "", fmt.Errorf("unknown attendance %q", s)
}

func ParsePayment(s string) (Payment, error) {
	switch v := Payment(s); v {
	case PaymentUnpaid, PaymentPaid:
		return v, nil
	}
	return "", fmt.Errorf("unknown payment %q", s)
}

func ParseJoinMode(s string) (JoinMode, error) {
	switch v := JoinMode(s); v {
	case JoinModeOpen, JoinModeApprovalRequired, JoinModeInviteOnly:
		return v, nil
	}
	return "", fmt.Errorf("unknown join mode %q", s)
}
