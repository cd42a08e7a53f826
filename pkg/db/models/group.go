package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/davidmarceau/groupline-backend/pkg/db/types"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	"github.com/davidmarceau/groupline-backend/pkg/types"
)

// Group is the membership-scoped resource the engine authorizes access to.
// The allow_* sets hold capability tokens: either a role keyword or a
// concrete user id.
type Group struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     *uuid.UUID            `gorm:"column:owner_id;type:uuid"`
	CreatedByID uuid.UUID             `gorm:"column:created_by_id;type:uuid;not null"`
	Title       string                `gorm:"column:title;not null"`
	Slug        string                `gorm:"column:slug;not null;uniqueIndex"`
	Description *string               `gorm:"column:description"`
	AvatarURL   *string               `gorm:"column:avatar_url"`
	Kind        *string               `gorm:"column:kind"`
	Visibility  enums.GroupVisibility `gorm:"column:visibility;type:group_visibility;not null;default:'public'"`
	JoinPolicy  enums.JoinPolicy      `gorm:"column:join_policy;type:join_policy;not null;default:'by_request'"`
	Namespace   *string               `gorm:"column:namespace"`
	Attributes  types.Attributes      `gorm:"column:attributes;type:jsonb"`
	Tags        dbtypes.StringSet     `gorm:"column:tags;type:jsonb;not null"`

	AllowView          dbtypes.StringSet `gorm:"column:allow_view;type:jsonb;not null"`
	AllowRequest       dbtypes.StringSet `gorm:"column:allow_request;type:jsonb;not null"`
	AllowJoin          dbtypes.StringSet `gorm:"column:allow_join;type:jsonb;not null"`
	AllowInvite        dbtypes.StringSet `gorm:"column:allow_invite;type:jsonb;not null"`
	AllowManageMembers dbtypes.StringSet `gorm:"column:allow_manage_members;type:jsonb;not null"`
	AllowUpdateGroup   dbtypes.StringSet `gorm:"column:allow_update_group;type:jsonb;not null"`
	AllowDeleteGroup   dbtypes.StringSet `gorm:"column:allow_delete_group;type:jsonb;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
