package policy

import (
	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
)

// TransferKind names the three legal ownership transfer shapes.
type TransferKind string

const (
	TransferResignation TransferKind = "resignation"
	TransferClaim       TransferKind = "claim"
	TransferHandover    TransferKind = "handover"
)

// TransferInput carries everything DecideTransfer needs: the group under a row
// lock, the actor's membership, and (for handovers) the candidate owner's
// membership.
type TransferInput struct {
	Group               *models.Group
	NewOwnerID          *uuid.UUID
	ActorMembership     *models.GroupMembership
	CandidateMembership *models.GroupMembership
}

// DecideTransfer is the single authorization surface for owner_id changes.
// Resignation: the owner steps down, leaving the group ownerless. Claim: an
// approved admin takes a vacant group for themselves. Handover: the owner
// assigns ownership to an approved member. Everything else is forbidden.
//
// Callers must hold a row lock on the group and pass its re-read state, so a
// racing claim observes the winner's committed owner_id and loses here.
func (e *Evaluator) DecideTransfer(actor Actor, input TransferInput) (TransferKind, error) {
	group := input.Group
	if group == nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
	}
	if actor.IsAnonymous() {
		e.record("groups", "transfer", false)
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	isOwner := ownsGroup(actor, group)
	vacant := group.OwnerID == nil

	switch {
	case isOwner && input.NewOwnerID == nil:
		e.record("groups", "transfer", true)
		return TransferResignation, nil

	case vacant && input.NewOwnerID != nil && *input.NewOwnerID == actor.ID:
		if !adminsGroup(input.ActorMembership) {
			e.record("groups", "transfer", false)
			return "", pkgerrors.New(pkgerrors.CodeForbidden, "only an approved admin may claim a vacant group")
		}
		e.record("groups", "transfer", true)
		return TransferClaim, nil

	case isOwner && input.NewOwnerID != nil:
		if !approvedMember(input.CandidateMembership) {
			e.record("groups", "transfer", false)
			return "", pkgerrors.New(pkgerrors.CodeForbidden, "new owner must be an approved member")
		}
		e.record("groups", "transfer", true)
		return TransferHandover, nil

	default:
		e.record("groups", "transfer", false)
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "ownership transfer not permitted")
	}
}
