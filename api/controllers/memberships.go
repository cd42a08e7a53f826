package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/api/responses"
	"github.com/davidmarceau/groupline-backend/api/validators"
	"github.com/davidmarceau/groupline-backend/internal/memberships"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
	"github.com/davidmarceau/groupline-backend/pkg/logger"
)

type membershipJoinRequest struct {
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Role        *string    `json:"role,omitempty" validate:"omitempty,oneof=owner admin member"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=request approved denied left kicked banned"`
	InvitedByID *uuid.UUID `json:"invited_by_id,omitempty"`
}

func (r membershipJoinRequest) toInput() memberships.JoinInput {
	input := memberships.JoinInput{
		UserID:      r.UserID,
		InvitedByID: r.InvitedByID,
	}
	if r.Role != nil {
		role := enums.MemberRole(*r.Role)
		input.Role = &role
	}
	if r.Status != nil {
		status := enums.MembershipStatus(*r.Status)
		input.Status = &status
	}
	return input
}

// MembershipJoin creates a membership row through the join-policy gate. The
// body is optional; an empty body joins the caller as a plain member.
func MembershipJoin(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload membershipJoinRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Join(r.Context(), actorFromContext(r.Context()), groupID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type membershipStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=request approved denied left kicked banned"`
}

func MembershipSetStatus(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		membershipID, err := pathUUID(r, "membershipId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload membershipStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SetStatus(r.Context(), actorFromContext(r.Context()), membershipID, enums.MembershipStatus(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type membershipRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin member"`
}

func MembershipSetRole(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		membershipID, err := pathUUID(r, "membershipId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload membershipRoleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SetRole(r.Context(), actorFromContext(r.Context()), membershipID, enums.MemberRole(payload.Role))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func MembershipLeave(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Leave(r.Context(), actorFromContext(r.Context()), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func MembershipListByGroup(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListByGroup(r.Context(), actorFromContext(r.Context()), groupID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func MembershipListMine(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListMine(r.Context(), actorFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
