package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/api/responses"
	"github.com/davidmarceau/groupline-backend/api/validators"
	"github.com/davidmarceau/groupline-backend/internal/invitations"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
	"github.com/davidmarceau/groupline-backend/pkg/logger"
)

type invitationCreateRequest struct {
	InviteeUserID *uuid.UUID `json:"invitee_user_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// InvitationCreate mints an invitation token for a group. Attribution and the
// token itself are server-side; the body only carries the optional invitee
// and expiry.
func InvitationCreate(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitation service unavailable"))
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload invitationCreateRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Invite(r.Context(), actorFromContext(r.Context()), groupID, invitations.InviteInput{
			InviteeUserID: payload.InviteeUserID,
			ExpiresAt:     payload.ExpiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type invitationRespondRequest struct {
	Action string `json:"action" validate:"required,oneof=accept revoke"`
}

// InvitationRespond accepts or revokes the invitation named by its token.
func InvitationRespond(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitation service unavailable"))
			return
		}

		token := strings.TrimSpace(chi.URLParam(r, "token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing invitation token"))
			return
		}

		var payload invitationRespondRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Respond(r.Context(), actorFromContext(r.Context()), token, invitations.ResponseAction(payload.Action))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func InvitationListByGroup(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitation service unavailable"))
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

func InvitationListMine(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitation service unavailable"))
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
