package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/pkg/enums"
)

// GroupMembership links a user with a group and captures their role/status.
// CreatedByID records who caused the row to exist, which differs from UserID
// when an owner or admin adds someone else.
type GroupMembership struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	GroupID     uuid.UUID              `gorm:"column:group_id;type:uuid;not null;index"`
	UserID      uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Role        enums.MemberRole       `gorm:"column:role;type:member_role;not null"`
	Status      enums.MembershipStatus `gorm:"column:status;type:membership_status;not null"`
	InvitedByID *uuid.UUID             `gorm:"column:invited_by_id;type:uuid"`
	CreatedByID uuid.UUID              `gorm:"column:created_by_id;type:uuid;not null"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
