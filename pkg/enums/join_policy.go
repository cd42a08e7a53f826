package enums

import "fmt"

// JoinPolicy governs the default join behavior of a group.
type JoinPolicy string

const (
	JoinPolicyOpen       JoinPolicy = "open"
	JoinPolicyByRequest  JoinPolicy = "by_request"
	JoinPolicyInviteOnly JoinPolicy = "invite_only"
	JoinPolicyClosed     JoinPolicy = "closed"
)

var validJoinPolicies = []JoinPolicy{
	JoinPolicyOpen,
	JoinPolicyByRequest,
	JoinPolicyInviteOnly,
	JoinPolicyClosed,
}

// String implements fmt.Stringer.
func (j JoinPolicy) String() string {
	return string(j)
}

// IsValid reports whether the value is a known JoinPolicy.
func (j JoinPolicy) IsValid() bool {
	for _, candidate := range validJoinPolicies {
		if candidate == j {
			return true
		}
	}
	return false
}

// ParseJoinPolicy converts raw input into a JoinPolicy.
func ParseJoinPolicy(value string) (JoinPolicy, error) {
	for _, candidate := range validJoinPolicies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid join policy %q", value)
}
