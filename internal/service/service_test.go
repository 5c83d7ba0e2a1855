package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"

	"sessionhub/internal/api/api"
	"sessionhub/internal/dto"
	"sessionhub/internal/enroll"
	"sessionhub/internal/model"
	"sessionhub/internal/repo"
	"sessionhub/internal/service"
)

const testSecret = "test-secret"

// fakeRepo is an in-memory stand-in for the Postgres repository. The
// transactional methods reproduce the same decision logic the SQL paths run,
// so handler tests exercise real capacity and promotion semantics.
type fakeRepo struct {
	mu             sync.Mutex
	sessions       map[uuid.UUID]*model.Session
	participations map[uuid.UUID]*model.Participation
	users          map[uuid.UUID]*model.User
	activities     map[uuid.UUID]*model.Activity
	seq            int

	// when set, RescheduleSessionTx fails with these participants
	rescheduleConflicts []model.ConflictingParticipant
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions:       map[uuid.UUID]*model.Session{},
		participations: map[uuid.UUID]*model.Participation{},
		users:          map[uuid.UUID]*model.User{},
		activities:     map[uuid.UUID]*model.Activity{},
	}
}

func (f *fakeRepo) nextTime() time.Time {
	f.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Second)
}

func (f *fakeRepo) CreateSession(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = f.nextTime()
	s.UpdatedAt = s.CreatedAt
	copied := *s
	f.sessions[s.ID] = &copied
	return nil
}

func (f *fakeRepo) GetSession(_ context.Context, orgID, id uuid.UUID) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.OrganizationID != orgID || s.DeletedAt != nil {
		return nil, model.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeRepo) GetSessionAny(_ context.Context, id uuid.UUID) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeRepo) ListSessions(_ context.Context, orgID uuid.UUID, activityID *uuid.UUID) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Session
	for _, s := range f.sessions {
		if s.OrganizationID != orgID || s.DeletedAt != nil {
			continue
		}
		if activityID != nil && (s.ActivityID == nil || *s.ActivityID != *activityID) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (f *fakeRepo) UpdateSessionFields(_ context.Context, id uuid.UUID, patch repo.SessionPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.DeletedAt != nil {
		return model.ErrSessionNotFound
	}
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.Description != nil {
		s.Description = *patch.Description
	}
	if patch.Location != nil {
		s.Location = *patch.Location
	}
	if patch.MaxCapacity != nil {
		s.MaxCapacity = *patch.MaxCapacity
	}
	if patch.MaxWaitlist != nil {
		s.MaxWaitlist = *patch.MaxWaitlist
	}
	if patch.JoinMode != nil {
		s.JoinMode = *patch.JoinMode
	}
	return nil
}

func (f *fakeRepo) UpdateSessionStatus(_ context.Context, id uuid.UUID, to model.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.DeletedAt != nil {
		return model.ErrSessionNotFound
	}
	s.Status = to
	return nil
}

func (f *fakeRepo) RescheduleSessionTx(_ context.Context, id uuid.UUID, newTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.DeletedAt != nil {
		return model.ErrSessionNotFound
	}
	if len(f.rescheduleConflicts) > 0 {
		return &model.ConflictingParticipantsError{Participants: f.rescheduleConflicts}
	}
	s.DateTime = newTime
	return nil
}

func (f *fakeRepo) JoinSessionTx(_ context.Context, sessionID, userID uuid.UUID) (*model.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.DeletedAt != nil {
		return nil, model.ErrSessionNotFound
	}
	if s.Status != model.SessionPublished {
		return nil, model.ErrSessionNotJoinable
	}

	joined, waitlisted := 0, 0
	for _, p := range f.participations {
		if p.SessionID != sessionID {
			continue
		}
		if p.UserID == userID && p.Status != model.ParticipationCancelled {
			return nil, model.ErrDuplicateParticipation
		}
		switch p.Status {
		case model.ParticipationJoined:
			joined++
		case model.ParticipationWaitlisted:
			waitlisted++
		}
	}

	decision := enroll.Decide(joined, waitlisted, s.MaxCapacity, s.MaxWaitlist)
	if decision == enroll.DecisionRejected {
		return nil, model.ErrCapacityExceeded
	}

	now := f.nextTime()
	p := &model.Participation{
		ID:         uuid.New(),
		SessionID:  sessionID,
		UserID:     userID,
		Status:     decision.Status(),
		Attendance: model.AttendancePending,
		Payment:    model.PaymentUnpaid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.participations[p.ID] = p
	copied := *p
	return &copied, nil
}

func (f *fakeRepo) CancelParticipationTx(_ context.Context, id uuid.UUID) (*model.Participation, *model.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participations[id]
	if !ok {
		return nil, nil, model.ErrParticipationNotFound
	}
	s := f.sessions[p.SessionID]
	if err := model.AssertParticipationTransition(p.Status, model.ParticipationCancelled); err != nil {
		return nil, nil, err
	}
	cancelledFrom := p.Status
	p.Status = model.ParticipationCancelled
	p.UpdatedAt = f.nextTime()

	joined := 0
	for _, q := range f.participations {
		if q.SessionID == p.SessionID && q.Status == model.ParticipationJoined {
			joined++
		}
	}
	freedSlot := enroll.ShouldPromote(cancelledFrom, s.Status, joined, s.MaxCapacity)

	var promoted *model.Participation
	if freedSlot {
		var candidate *model.Participation
		for _, q := range f.participations {
			if q.SessionID != p.SessionID || q.Status != model.ParticipationWaitlisted {
				continue
			}
			if candidate == nil || q.CreatedAt.Before(candidate.CreatedAt) {
				candidate = q
			}
		}
		if candidate != nil {
			candidate.Status = model.ParticipationJoined
			candidate.UpdatedAt = f.nextTime()
			copied := *candidate
			promoted = &copied
		}
	}

	cancelled := *p
	return &cancelled, promoted, nil
}

func (f *fakeRepo) GetParticipation(_ context.Context, orgID, id uuid.UUID) (*model.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participations[id]
	if !ok {
		return nil, model.ErrParticipationNotFound
	}
	s := f.sessions[p.SessionID]
	if s == nil || s.OrganizationID != orgID || s.DeletedAt != nil {
		return nil, model.ErrParticipationNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeRepo) GetParticipationAny(_ context.Context, id uuid.UUID) (*model.Participation, uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participations[id]
	if !ok {
		return nil, uuid.Nil, model.ErrParticipationNotFound
	}
	copied := *p
	return &copied, f.sessions[p.SessionID].OrganizationID, nil
}

func (f *fakeRepo) ListRoster(_ context.Context, sessionID uuid.UUID) ([]model.RosterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []model.RosterEntry
	for _, p := range f.participations {
		if p.SessionID != sessionID {
			continue
		}
		e := model.RosterEntry{Participation: *p}
		if u := f.users[p.UserID]; u != nil {
			e.DisplayName = u.DisplayName
			e.Email = u.Email
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

func (f *fakeRepo) CountParticipations(_ context.Context, sessionID uuid.UUID) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	joined, waitlisted := 0, 0
	for _, p := range f.participations {
		if p.SessionID != sessionID {
			continue
		}
		switch p.Status {
		case model.ParticipationJoined:
			joined++
		case model.ParticipationWaitlisted:
			waitlisted++
		}
	}
	return joined, waitlisted, nil
}

func (f *fakeRepo) UpdateParticipationAdmin(_ context.Context, id uuid.UUID, patch repo.ParticipationPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participations[id]
	if !ok {
		return model.ErrParticipationNotFound
	}
	if patch.Attendance != nil {
		p.Attendance = *patch.Attendance
	}
	if patch.Payment != nil {
		p.Payment = *patch.Payment
	}
	if patch.AdminNotes != nil {
		p.AdminNotes = *patch.AdminNotes
	}
	p.UpdatedAt = f.nextTime()
	return nil
}

func (f *fakeRepo) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeRepo) GetActivity(_ context.Context, orgID, id uuid.UUID) (*model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activities[id]
	if !ok || a.OrganizationID != orgID {
		return nil, model.ErrActivityNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeRepo) MigrateUp(string) error   { return nil }
func (f *fakeRepo) MigrateDown(string) error { return nil }

// fakePublisher records every envelope handed to it.
type fakePublisher struct {
	mu        sync.Mutex
	envelopes []dto.QueueEnvelope
	delays    []int
}

func (f *fakePublisher) Publish(body []byte, delay int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var env dto.QueueEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return err
	}
	f.envelopes = append(f.envelopes, env)
	f.delays = append(f.delays, delay)
	return nil
}

// noticeKinds returns the participation notice kinds in publish order.
func (f *fakePublisher) noticeKinds(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []string
	for _, env := range f.envelopes {
		if env.Type != "participation_notice" {
			continue
		}
		var notice dto.ParticipationNotice
		require.NoError(t, json.Unmarshal(env.Payload, &notice))
		kinds = append(kinds, notice.Kind)
	}
	return kinds
}

func (f *fakePublisher) reminderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, env := range f.envelopes {
		if env.Type == "session_reminder" {
			n++
		}
	}
	return n
}

type testEnv struct {
	repo    *fakeRepo
	pub     *fakePublisher
	app     *ginext.Engine
	orgID   uuid.UUID
	adminID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fr := newFakeRepo()
	pub := &fakePublisher{}
	log := zerolog.Nop()

	svc := service.NewService(fr, &log, pub)
	app := api.NewRouters(&api.Routers{Service: svc, JWTSecret: testSecret})

	env := &testEnv{
		repo:    fr,
		pub:     pub,
		app:     app,
		orgID:   uuid.New(),
		adminID: uuid.New(),
	}
	env.addUser(env.adminID, "Admin", "admin@example.com")
	return env
}

func (e *testEnv) addUser(id uuid.UUID, name, email string) {
	e.repo.users[id] = &model.User{
		ID:             id,
		OrganizationID: e.orgID,
		DisplayName:    name,
		Email:          email,
	}
}

func (e *testEnv) addSession(s *model.Session) *model.Session {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.OrganizationID == uuid.Nil {
		s.OrganizationID = e.orgID
	}
	if s.JoinMode == "" {
		s.JoinMode = model.JoinModeOpen
	}
	if s.Status == "" {
		s.Status = model.SessionPublished
	}
	if s.DateTime.IsZero() {
		s.DateTime = time.Now().Add(48 * time.Hour)
	}
	e.repo.sessions[s.ID] = s
	return s
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"user_id":      userID.String(),
		"org_id":       e.orgID.String(),
		"role":         role,
		"display_name": "Test User",
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) adminToken(t *testing.T) string {
	return e.token(t, e.adminID, "admin")
}

type apiError struct {
	Code    string          `json:"code"`
	Desc    string          `json:"desc"`
	Details json.RawMessage `json:"details"`
}

type apiResponse struct {
	Status string          `json:"status"`
	Error  *apiError       `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.app.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodGet, "/v1/sessions", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(t, http.MethodGet, "/v1/sessions", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, code)
}
