package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
)

// MembershipDTO is the transport shape for a membership record.
type MembershipDTO struct {
	ID          uuid.UUID              `json:"id"`
	GroupID     uuid.UUID              `json:"group_id"`
	UserID      uuid.UUID              `json:"user_id"`
	Role        enums.MemberRole       `json:"role"`
	Status      enums.MembershipStatus `json:"status"`
	InvitedByID *uuid.UUID             `json:"invited_by_id,omitempty"`
	CreatedByID uuid.UUID              `json:"created_by_id"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// ToDTO converts a model to the external DTO.
func ToDTO(m *models.GroupMembership) *MembershipDTO {
	if m == nil {
		return nil
	}
	return &MembershipDTO{
		ID:          m.ID,
		GroupID:     m.GroupID,
		UserID:      m.UserID,
		Role:        m.Role,
		Status:      m.Status,
		InvitedByID: copyUUIDPointer(m.InvitedByID),
		CreatedByID: m.CreatedByID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ToDTOs maps a page of memberships.
func ToDTOs(rows []models.GroupMembership) []MembershipDTO {
	out := make([]MembershipDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *ToDTO(&rows[i]))
	}
	return out
}

// JoinInput captures a join/request call. UserID defaults to the actor;
// managers may file it for someone else.
type JoinInput struct {
	UserID      *uuid.UUID
	Role        *enums.MemberRole
	Status      *enums.MembershipStatus
	InvitedByID *uuid.UUID
}

// ListResult is a cursor page of memberships.
type ListResult struct {
	Memberships []MembershipDTO `json:"memberships"`
	NextCursor  string          `json:"next_cursor,omitempty"`
}

func copyUUIDPointer(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}
