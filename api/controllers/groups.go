package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/api/responses"
	"github.com/davidmarceau/groupline-backend/api/validators"
	"github.com/davidmarceau/groupline-backend/internal/groups"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
	"github.com/davidmarceau/groupline-backend/pkg/logger"
)

type groupCreateRequest struct {
	Title       string            `json:"title" validate:"required,min=1,max=200"`
	Slug        string            `json:"slug" validate:"required,min=1,max=120"`
	Description *string           `json:"description,omitempty"`
	AvatarURL   *string           `json:"avatar_url,omitempty"`
	Kind        *string           `json:"kind,omitempty"`
	Namespace   *string           `json:"namespace,omitempty"`
	Visibility  string            `json:"visibility,omitempty" validate:"omitempty,oneof=public private secret"`
	JoinPolicy  string            `json:"join_policy,omitempty" validate:"omitempty,oneof=open by_request invite_only closed"`
	OwnerID     *uuid.UUID        `json:"owner_id,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Tags        []string          `json:"tags,omitempty"`

	AllowView          []string `json:"allow_view,omitempty"`
	AllowRequest       []string `json:"allow_request,omitempty"`
	AllowJoin          []string `json:"allow_join,omitempty"`
	AllowInvite        []string `json:"allow_invite,omitempty"`
	AllowManageMembers []string `json:"allow_manage_members,omitempty"`
	AllowUpdateGroup   []string `json:"allow_update_group,omitempty"`
	AllowDeleteGroup   []string `json:"allow_delete_group,omitempty"`
}

func (r groupCreateRequest) toInput() groups.CreateGroupInput {
	return groups.CreateGroupInput{
		Title:       r.Title,
		Slug:        r.Slug,
		Description: r.Description,
		AvatarURL:   r.AvatarURL,
		Kind:        r.Kind,
		Namespace:   r.Namespace,
		Visibility:  enums.GroupVisibility(r.Visibility),
		JoinPolicy:  enums.JoinPolicy(r.JoinPolicy),
		OwnerID:     r.OwnerID,
		Attributes:  r.Attributes,
		Tags:        r.Tags,

		AllowView:          r.AllowView,
		AllowRequest:       r.AllowRequest,
		AllowJoin:          r.AllowJoin,
		AllowInvite:        r.AllowInvite,
		AllowManageMembers: r.AllowManageMembers,
		AllowUpdateGroup:   r.AllowUpdateGroup,
		AllowDeleteGroup:   r.AllowDeleteGroup,
	}
}

func GroupCreate(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		var payload groupCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), actorFromContext(r.Context()), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func GroupGet(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Get(r.Context(), actorFromContext(r.Context()), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func GroupList(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := groups.ListFilter{
			Limit:  params.Limit,
			Cursor: params.Cursor,
		}
		if kind := strings.TrimSpace(r.URL.Query().Get("kind")); kind != "" {
			filter.Kind = &kind
		}
		if namespace := strings.TrimSpace(r.URL.Query().Get("namespace")); namespace != "" {
			filter.Namespace = &namespace
		}

		result, err := svc.List(r.Context(), actorFromContext(r.Context()), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type groupUpdateRequest struct {
	Title       *string            `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string            `json:"description,omitempty"`
	AvatarURL   *string            `json:"avatar_url,omitempty"`
	Kind        *string            `json:"kind,omitempty"`
	Visibility  *string            `json:"visibility,omitempty" validate:"omitempty,oneof=public private secret"`
	JoinPolicy  *string            `json:"join_policy,omitempty" validate:"omitempty,oneof=open by_request invite_only closed"`
	Attributes  *map[string]string `json:"attributes,omitempty"`
	Tags        *[]string          `json:"tags,omitempty"`

	AllowView          *[]string `json:"allow_view,omitempty"`
	AllowRequest       *[]string `json:"allow_request,omitempty"`
	AllowJoin          *[]string `json:"allow_join,omitempty"`
	AllowInvite        *[]string `json:"allow_invite,omitempty"`
	AllowManageMembers *[]string `json:"allow_manage_members,omitempty"`
	AllowUpdateGroup   *[]string `json:"allow_update_group,omitempty"`
	AllowDeleteGroup   *[]string `json:"allow_delete_group,omitempty"`
}

func (r groupUpdateRequest) toInput() groups.UpdateGroupInput {
	input := groups.UpdateGroupInput{
		Title:       r.Title,
		Description: r.Description,
		AvatarURL:   r.AvatarURL,
		Kind:        r.Kind,
		Attributes:  r.Attributes,
		Tags:        r.Tags,

		AllowView:          r.AllowView,
		AllowRequest:       r.AllowRequest,
		AllowJoin:          r.AllowJoin,
		AllowInvite:        r.AllowInvite,
		AllowManageMembers: r.AllowManageMembers,
		AllowUpdateGroup:   r.AllowUpdateGroup,
		AllowDeleteGroup:   r.AllowDeleteGroup,
	}
	if r.Visibility != nil {
		visibility := enums.GroupVisibility(*r.Visibility)
		input.Visibility = &visibility
	}
	if r.JoinPolicy != nil {
		joinPolicy := enums.JoinPolicy(*r.JoinPolicy)
		input.JoinPolicy = &joinPolicy
	}
	return input
}

func GroupUpdate(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload groupUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Update(r.Context(), actorFromContext(r.Context()), groupID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func GroupDelete(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actorFromContext(r.Context()), groupID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

type groupTransferRequest struct {
	NewOwnerID *uuid.UUID `json:"new_owner_id,omitempty"`
}

// GroupTransferOwnership handles resignations (null new_owner_id), vacant
// claims, and handovers through a single endpoint.
func GroupTransferOwnership(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload groupTransferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.TransferOwnership(r.Context(), actorFromContext(r.Context()), groupID, payload.NewOwnerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "missing path parameter").WithDetails(map[string]any{"field": param})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identifier").WithDetails(map[string]any{"field": param})
	}
	return id, nil
}
