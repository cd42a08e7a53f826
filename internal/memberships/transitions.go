package memberships

import (
	"fmt"

	"github.com/davidmarceau/groupline-backend/pkg/enums"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
)

// transitionTable is the closed set of legal status moves. Statuses absent
// from the map (kicked, banned, left) are terminal.
var transitionTable = map[enums.MembershipStatus][]enums.MembershipStatus{
	enums.MembershipStatusRequest: {
		enums.MembershipStatusApproved,
		enums.MembershipStatusDenied,
	},
	enums.MembershipStatusApproved: {
		enums.MembershipStatusLeft,
		enums.MembershipStatusKicked,
		enums.MembershipStatusBanned,
	},
	enums.MembershipStatusDenied: {
		enums.MembershipStatusRequest,
	},
}

// CanTransition reports whether from → to is a legal status move. An unchanged
// status always passes.
func CanTransition(from, to enums.MembershipStatus) bool {
	if from == to {
		return true
	}
	for _, candidate := range transitionTable[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed state-conflict error for illegal moves.
func ValidateTransition(from, to enums.MembershipStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid membership status %q", to))
	}
	if !CanTransition(from, to) {
		return pkgerrors.New(
			pkgerrors.CodeStateConflict,
			fmt.Sprintf("membership status cannot move from %q to %q", from, to),
		)
	}
	return nil
}
