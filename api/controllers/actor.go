package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/api/middleware"
	"github.com/davidmarceau/groupline-backend/internal/policy"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
)

// actorFromContext rebuilds the policy actor from the request context seeded
// by the auth middleware. Requests with no (or unparsable) claims are
// anonymous.
func actorFromContext(ctx context.Context) policy.Actor {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return policy.Anonymous()
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return policy.Anonymous()
	}
	if middleware.RoleFromContext(ctx) == string(enums.ActorRoleAdmin) {
		return policy.Admin(id)
	}
	return policy.User(id)
}
