package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/pkg/enums"
)

// GroupInvitation is a server-attributed invite into a group. InviteeUserID
// may be nil when the invite targets an out-of-band identity; acceptance then
// binds it to the accepting actor.
type GroupInvitation struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	GroupID       uuid.UUID              `gorm:"column:group_id;type:uuid;not null;index"`
	Token         string                 `gorm:"column:token;not null;uniqueIndex"`
	InviteeUserID *uuid.UUID             `gorm:"column:invitee_user_id;type:uuid"`
	InvitedByID   uuid.UUID              `gorm:"column:invited_by_id;type:uuid;not null"`
	Status        enums.InvitationStatus `gorm:"column:status;type:invitation_status;not null;default:'pending'"`
	ExpiresAt     *time.Time             `gorm:"column:expires_at"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
