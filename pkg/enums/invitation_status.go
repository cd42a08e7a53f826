package enums

import "fmt"

// InvitationStatus captures the lifecycle of a group invitation.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusRevoked  InvitationStatus = "revoked"
	InvitationStatusExpired  InvitationStatus = "expired"
)

var validInvitationStatuses = []InvitationStatus{
	InvitationStatusPending,
	InvitationStatusAccepted,
	InvitationStatusRevoked,
	InvitationStatusExpired,
}

// String implements fmt.Stringer.
func (i InvitationStatus) String() string {
	return string(i)
}

// IsValid reports whether the value matches a known InvitationStatus.
func (i InvitationStatus) IsValid() bool {
	for _, candidate := range validInvitationStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInvitationStatus converts raw input into an InvitationStatus.
func ParseInvitationStatus(value string) (InvitationStatus, error) {
	for _, candidate := range validInvitationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invitation status %q", value)
}
