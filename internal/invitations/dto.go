package invitations

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
)

// InvitationDTO is the transport shape for an invitation.
type InvitationDTO struct {
	ID            uuid.UUID              `json:"id"`
	GroupID       uuid.UUID              `json:"group_id"`
	Token         string                 `json:"token"`
	InviteeUserID *uuid.UUID             `json:"invitee_user_id,omitempty"`
	InvitedByID   uuid.UUID              `json:"invited_by_id"`
	Status        enums.InvitationStatus `json:"status"`
	ExpiresAt     *time.Time             `json:"expires_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// ToDTO converts a model to the external DTO.
func ToDTO(inv *models.GroupInvitation) *InvitationDTO {
	if inv == nil {
		return nil
	}
	return &InvitationDTO{
		ID:            inv.ID,
		GroupID:       inv.GroupID,
		Token:         inv.Token,
		InviteeUserID: copyUUIDPointer(inv.InviteeUserID),
		InvitedByID:   inv.InvitedByID,
		Status:        inv.Status,
		ExpiresAt:     inv.ExpiresAt,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

// ToDTOs maps a page of invitations.
func ToDTOs(rows []models.GroupInvitation) []InvitationDTO {
	out := make([]InvitationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *ToDTO(&rows[i]))
	}
	return out
}

// InviteInput captures the client-supplied invitation fields. invited_by_id,
// token, and status are always server-attributed.
type InviteInput struct {
	InviteeUserID *uuid.UUID
	ExpiresAt     *time.Time
}

// ResponseAction is what an actor does with a pending invitation.
type ResponseAction string

const (
	ResponseAccept ResponseAction = "accept"
	ResponseRevoke ResponseAction = "revoke"
)

// IsValid reports whether the action is known.
func (r ResponseAction) IsValid() bool {
	return r == ResponseAccept || r == ResponseRevoke
}

// ListResult is a cursor page of invitations.
type ListResult struct {
	Invitations []InvitationDTO `json:"invitations"`
	NextCursor  string          `json:"next_cursor,omitempty"`
}

func copyUUIDPointer(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}
