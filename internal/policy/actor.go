package policy

import (
	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/pkg/enums"
)

// Actor identifies who is performing an operation. Every engine call carries
// one explicitly; there is no implicit session state below the API layer.
type Actor struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// Anonymous returns the unauthenticated actor.
func Anonymous() Actor {
	return Actor{Role: enums.ActorRoleAnonymous}
}

// User returns an authenticated non-staff actor.
func User(id uuid.UUID) Actor {
	return Actor{ID: id, Role: enums.ActorRoleUser}
}

// Admin returns a platform staff actor.
func Admin(id uuid.UUID) Actor {
	return Actor{ID: id, Role: enums.ActorRoleAdmin}
}

func (a Actor) IsAnonymous() bool {
	return a.Role == enums.ActorRoleAnonymous || a.ID == uuid.Nil
}

// IsPlatformAdmin reports platform staff, which bypasses row filters on reads
// but never write guards.
func (a Actor) IsPlatformAdmin() bool {
	return a.Role == enums.ActorRoleAdmin && a.ID != uuid.Nil
}
