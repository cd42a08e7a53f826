package groups

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	dbtypes "github.com/davidmarceau/groupline-backend/pkg/db/types"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	"github.com/davidmarceau/groupline-backend/pkg/types"
)

// GroupDTO is the transport shape for a group.
type GroupDTO struct {
	ID          uuid.UUID             `json:"id"`
	OwnerID     *uuid.UUID            `json:"owner_id,omitempty"`
	CreatedByID uuid.UUID             `json:"created_by_id"`
	Title       string                `json:"title"`
	Slug        string                `json:"slug"`
	Description *string               `json:"description,omitempty"`
	AvatarURL   *string               `json:"avatar_url,omitempty"`
	Kind        *string               `json:"kind,omitempty"`
	Namespace   *string               `json:"namespace,omitempty"`
	Visibility  enums.GroupVisibility `json:"visibility"`
	JoinPolicy  enums.JoinPolicy      `json:"join_policy"`
	Attributes  types.Attributes      `json:"attributes,omitempty"`
	Tags        []string              `json:"tags,omitempty"`

	AllowView          []string `json:"allow_view,omitempty"`
	AllowRequest       []string `json:"allow_request,omitempty"`
	AllowJoin          []string `json:"allow_join,omitempty"`
	AllowInvite        []string `json:"allow_invite,omitempty"`
	AllowManageMembers []string `json:"allow_manage_members,omitempty"`
	AllowUpdateGroup   []string `json:"allow_update_group,omitempty"`
	AllowDeleteGroup   []string `json:"allow_delete_group,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromModel converts a persisted group into its DTO.
func FromModel(group *models.Group) *GroupDTO {
	if group == nil {
		return nil
	}
	return &GroupDTO{
		ID:                 group.ID,
		OwnerID:            copyUUIDPointer(group.OwnerID),
		CreatedByID:        group.CreatedByID,
		Title:              group.Title,
		Slug:               group.Slug,
		Description:        group.Description,
		AvatarURL:          group.AvatarURL,
		Kind:               group.Kind,
		Namespace:          group.Namespace,
		Visibility:         group.Visibility,
		JoinPolicy:         group.JoinPolicy,
		Attributes:         group.Attributes,
		Tags:               group.Tags,
		AllowView:          group.AllowView,
		AllowRequest:       group.AllowRequest,
		AllowJoin:          group.AllowJoin,
		AllowInvite:        group.AllowInvite,
		AllowManageMembers: group.AllowManageMembers,
		AllowUpdateGroup:   group.AllowUpdateGroup,
		AllowDeleteGroup:   group.AllowDeleteGroup,
		CreatedAt:          group.CreatedAt,
		UpdatedAt:          group.UpdatedAt,
	}
}

// FromModels maps a page of groups into DTOs.
func FromModels(groups []models.Group) []GroupDTO {
	out := make([]GroupDTO, 0, len(groups))
	for i := range groups {
		out = append(out, *FromModel(&groups[i]))
	}
	return out
}

// CreateGroupInput captures the client-supplied group fields. created_by_id is
// always force-set to the actor; owner_id defaults to the creator.
type CreateGroupInput struct {
	Title       string
	Slug        string
	Description *string
	AvatarURL   *string
	Kind        *string
	Namespace   *string
	Visibility  enums.GroupVisibility
	JoinPolicy  enums.JoinPolicy
	OwnerID     *uuid.UUID
	Attributes  map[string]string
	Tags        []string

	AllowView          []string
	AllowRequest       []string
	AllowJoin          []string
	AllowInvite        []string
	AllowManageMembers []string
	AllowUpdateGroup   []string
	AllowDeleteGroup   []string
}

// UpdateGroupInput captures the mutable group fields.
type UpdateGroupInput struct {
	Title       *string
	Description *string
	AvatarURL   *string
	Kind        *string
	Visibility  *enums.GroupVisibility
	JoinPolicy  *enums.JoinPolicy
	Attributes  *map[string]string
	Tags        *[]string

	AllowView          *[]string
	AllowRequest       *[]string
	AllowJoin          *[]string
	AllowInvite        *[]string
	AllowManageMembers *[]string
	AllowUpdateGroup   *[]string
	AllowDeleteGroup   *[]string
}

// ListFilter narrows group listings.
type ListFilter struct {
	Kind      *string
	Namespace *string
	Limit     int
	Cursor    string
}

// ListResult is a cursor page of groups.
type ListResult struct {
	Groups     []GroupDTO `json:"groups"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func copyUUIDPointer(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}

func toStringSet(values []string) dbtypes.StringSet {
	if values == nil {
		return dbtypes.StringSet{}
	}
	out := make(dbtypes.StringSet, len(values))
	copy(out, values)
	return out
}
