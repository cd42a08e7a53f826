package enums

import "fmt"

// MembershipStatus captures the lifecycle of a group membership.
type MembershipStatus string

const (
	MembershipStatusRequest  MembershipStatus = "request"
	MembershipStatusApproved MembershipStatus = "approved"
	MembershipStatusDenied   MembershipStatus = "denied"
	MembershipStatusKicked   MembershipStatus = "kicked"
	MembershipStatusBanned   MembershipStatus = "banned"
	MembershipStatusLeft     MembershipStatus = "left"
)

var validMembershipStatuses = []MembershipStatus{
	MembershipStatusRequest,
	MembershipStatusApproved,
	MembershipStatusDenied,
	MembershipStatusKicked,
	MembershipStatusBanned,
	MembershipStatusLeft,
}

// String implements fmt.Stringer.
func (m MembershipStatus) String() string {
	return string(m)
}

// IsValid reports whether the value matches a known MembershipStatus.
func (m MembershipStatus) IsValid() bool {
	for _, candidate := range validMembershipStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsEffective reports whether the status counts toward the at-most-one
// effective membership per (group, user) rule.
func (m MembershipStatus) IsEffective() bool {
	return m == MembershipStatusRequest || m == MembershipStatusApproved
}

// IsTerminal reports whether the status ends the membership lifecycle.
func (m MembershipStatus) IsTerminal() bool {
	switch m {
	case MembershipStatusKicked, MembershipStatusBanned, MembershipStatusLeft:
		return true
	}
	return false
}

// ParseMembershipStatus converts raw input into a MembershipStatus.
func ParseMembershipStatus(value string) (MembershipStatus, error) {
	for _, candidate := range validMembershipStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership status %q", value)
}
