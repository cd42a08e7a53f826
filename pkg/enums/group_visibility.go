package enums

import "fmt"

// GroupVisibility controls who can discover a group at all.
type GroupVisibility string

const (
	GroupVisibilityPublic  GroupVisibility = "public"
	GroupVisibilityPrivate GroupVisibility = "private"
	GroupVisibilitySecret  GroupVisibility = "secret"
)

var validGroupVisibilities = []GroupVisibility{
	GroupVisibilityPublic,
	GroupVisibilityPrivate,
	GroupVisibilitySecret,
}

// String implements fmt.Stringer.
func (g GroupVisibility) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GroupVisibility.
func (g GroupVisibility) IsValid() bool {
	for _, candidate := range validGroupVisibilities {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGroupVisibility converts raw input into a GroupVisibility.
func ParseGroupVisibility(value string) (GroupVisibility, error) {
	for _, candidate := range validGroupVisibilities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group visibility %q", value)
}
