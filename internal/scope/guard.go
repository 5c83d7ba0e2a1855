// Package scope is the tenant boundary. Every read it exposes is filtered
// by the caller's organization, and every mutation in the service layer must
// resolve its target through a Guard before touching it.
package scope

import (
	"context"

	"github.com/google/uuid"

	"sessionhub/internal/model"
)

// Store is the read surface the guard needs from the repository.
type Store interface {
	GetSession(ctx context.Context, orgID, id uuid.UUID) (*model.Session, error)
	GetSessionAny(ctx context.Context, id uuid.UUID) (*model.Session, error)
	GetParticipation(ctx context.Context, orgID, id uuid.UUID) (*model.Participation, error)
	GetParticipationAny(ctx context.Context, id uuid.UUID) (*model.Participation, uuid.UUID, error)
}

// Guard resolves entities on behalf of one authenticated organization. It
// never mutates.
type Guard struct {
	store Store
	orgID uuid.UUID
}

func NewGuard(store Store, orgID uuid.UUID) *Guard {
	return &Guard{store: store, orgID: orgID}
}

// RequireSession fetches a session filtered by organization and soft-delete.
// Absent and out-of-scope rows are both reported as not found: read paths
// must not reveal that a foreign session exists.
func (g *Guard) RequireSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return g.store.GetSession(ctx, g.orgID, id)
}

// RequireSessionForMutation fetches without the organization filter, then
// compares organizations explicitly. A session that exists in another
// organization fails with ErrForbidden rather than not-found, so an admin
// who mis-scopes a call gets an actionable diagnostic.
func (g *Guard) RequireSessionForMutation(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	s, err := g.store.GetSessionAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.DeletedAt != nil {
		return nil, model.ErrSessionNotFound
	}
	if s.OrganizationID != g.orgID {
		return nil, model.ErrForbidden
	}
	return s, nil
}

// RequireParticipation fetches a participation through its parent session's
// organization.
func (g *Guard) RequireParticipation(ctx context.Context, id uuid.UUID) (*model.Participation, error) {
	return g.store.GetParticipation(ctx, g.orgID, id)
}

// RequireParticipationForMutation applies the same two-step pattern as
// RequireSessionForMutation, inheriting the organization from the parent
// session.
func (g *Guard) RequireParticipationForMutation(ctx context.Context, id uuid.UUID) (*model.Participation, error) {
	p, orgID, err := g.store.GetParticipationAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if orgID != g.orgID {
		return nil, model.ErrForbidden
	}
	return p, nil
}

// RequireUserParticipation additionally requires the participation to belong
// to the given user. A mismatch is reported as not found: from the caller's
// perspective another member's record is indistinguishable from a
// non-existent one.
func (g *Guard) RequireUserParticipation(ctx context.Context, id, userID uuid.UUID) (*model.Participation, error) {
	p, err := g.store.GetParticipation(ctx, g.orgID, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, model.ErrParticipationNotFound
	}
	return p, nil
}
