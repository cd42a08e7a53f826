package policy

import (
	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	"github.com/davidmarceau/groupline-backend/pkg/metrics"
)

// Evaluator is the stateless authorization surface. Every predicate is a pure
// function over the actor, the target row, and the actor's own membership in
// the row's group (nil when none). Decisions are counted when metrics are
// attached.
type Evaluator struct {
	metrics *metrics.PolicyMetrics
}

func NewEvaluator(m *metrics.PolicyMetrics) *Evaluator {
	return &Evaluator{metrics: m}
}

func (e *Evaluator) record(table, operation string, allowed bool) bool {
	if e != nil {
		e.metrics.IncDecision(table, operation, allowed)
	}
	return allowed
}

// ownsGroup reports whether the actor is the group's current owner.
func ownsGroup(actor Actor, group *models.Group) bool {
	return group != nil && group.OwnerID != nil && !actor.IsAnonymous() && *group.OwnerID == actor.ID
}

// adminsGroup reports an approved admin (or owner-role) membership.
func adminsGroup(membership *models.GroupMembership) bool {
	if membership == nil || membership.Status != enums.MembershipStatusApproved {
		return false
	}
	return membership.Role == enums.MemberRoleAdmin || membership.Role == enums.MemberRoleOwner
}

// managesGroup is the shared owner-or-admin clause used across predicates.
func managesGroup(actor Actor, group *models.Group, membership *models.GroupMembership) bool {
	return ownsGroup(actor, group) || adminsGroup(membership)
}

func approvedMember(membership *models.GroupMembership) bool {
	return membership != nil && membership.Status == enums.MembershipStatusApproved
}

// CanSelectGroup gates single-row group reads. Platform staff bypass the
// filter; everyone else needs public visibility, an approved membership, or an
// allow_view grant.
func (e *Evaluator) CanSelectGroup(actor Actor, group *models.Group, membership *models.GroupMembership) bool {
	if group == nil {
		return e.record("groups", "select", false)
	}
	if actor.IsPlatformAdmin() {
		return e.record("groups", "select", true)
	}
	if group.Visibility == enums.GroupVisibilityPublic {
		return e.record("groups", "select", true)
	}
	if listAllows(group.AllowView, actor) {
		return e.record("groups", "select", true)
	}
	if !actor.IsAnonymous() {
		if ownsGroup(actor, group) || approvedMember(membership) {
			return e.record("groups", "select", true)
		}
	}
	return e.record("groups", "select", false)
}

// CanInsertGroup allows any authenticated actor to create a group.
func (e *Evaluator) CanInsertGroup(actor Actor) bool {
	return e.record("groups", "insert", !actor.IsAnonymous())
}

// CanUpdateGroup allows the current owner, an approved admin member, or an
// allow_update_group grant.
func (e *Evaluator) CanUpdateGroup(actor Actor, group *models.Group, membership *models.GroupMembership) bool {
	if group == nil || actor.IsAnonymous() {
		return e.record("groups", "update", false)
	}
	allowed := managesGroup(actor, group, membership) || listAllows(group.AllowUpdateGroup, actor)
	return e.record("groups", "update", allowed)
}

// CanDeleteGroup allows the owner or an allow_delete_group grant.
func (e *Evaluator) CanDeleteGroup(actor Actor, group *models.Group) bool {
	if group == nil || actor.IsAnonymous() {
		return e.record("groups", "delete", false)
	}
	allowed := ownsGroup(actor, group) || listAllows(group.AllowDeleteGroup, actor)
	return e.record("groups", "delete", allowed)
}

// CanSelectMembership allows the member themselves or a group manager.
func (e *Evaluator) CanSelectMembership(actor Actor, group *models.Group, row *models.GroupMembership, actorMembership *models.GroupMembership) bool {
	if row == nil || actor.IsAnonymous() {
		return e.record("group_memberships", "select", false)
	}
	if actor.IsPlatformAdmin() {
		return e.record("group_memberships", "select", true)
	}
	allowed := row.UserID == actor.ID || managesGroup(actor, group, actorMembership)
	return e.record("group_memberships", "select", allowed)
}

// CanInsertMembership allows self-requests and managers adding others.
func (e *Evaluator) CanInsertMembership(actor Actor, group *models.Group, row *models.GroupMembership, actorMembership *models.GroupMembership) bool {
	if row == nil || actor.IsAnonymous() {
		return e.record("group_memberships", "insert", false)
	}
	allowed := row.UserID == actor.ID || managesGroup(actor, group, actorMembership)
	return e.record("group_memberships", "insert", allowed)
}

// CanUpdateMembership allows the member themselves, a manager, or an
// allow_manage_members grant.
func (e *Evaluator) CanUpdateMembership(actor Actor, group *models.Group, row *models.GroupMembership, actorMembership *models.GroupMembership) bool {
	if row == nil || actor.IsAnonymous() {
		return e.record("group_memberships", "update", false)
	}
	allowed := row.UserID == actor.ID ||
		managesGroup(actor, group, actorMembership) ||
		(group != nil && listAllows(group.AllowManageMembers, actor))
	return e.record("group_memberships", "update", allowed)
}

// IsManager reports whether the actor may administer members of the group:
// owner, approved admin, or allow_manage_members grant. Role changes require
// this; non-managers fall through to the configured no-op/forbidden behavior.
func (e *Evaluator) IsManager(actor Actor, group *models.Group, actorMembership *models.GroupMembership) bool {
	if group == nil || actor.IsAnonymous() {
		return false
	}
	return managesGroup(actor, group, actorMembership) || listAllows(group.AllowManageMembers, actor)
}

// CanSelectInvitation allows invitee, inviter, or a group manager.
func (e *Evaluator) CanSelectInvitation(actor Actor, group *models.Group, invitation *models.GroupInvitation, actorMembership *models.GroupMembership) bool {
	if invitation == nil || actor.IsAnonymous() {
		return e.record("group_invitations", "select", false)
	}
	if actor.IsPlatformAdmin() {
		return e.record("group_invitations", "select", true)
	}
	allowed := invitation.InvitedByID == actor.ID ||
		(invitation.InviteeUserID != nil && *invitation.InviteeUserID == actor.ID) ||
		managesGroup(actor, group, actorMembership)
	return e.record("group_invitations", "select", allowed)
}

// CanInsertInvitation allows group managers and allow_invite grants.
func (e *Evaluator) CanInsertInvitation(actor Actor, group *models.Group, actorMembership *models.GroupMembership) bool {
	if group == nil || actor.IsAnonymous() {
		return e.record("group_invitations", "insert", false)
	}
	allowed := managesGroup(actor, group, actorMembership) || listAllows(group.AllowInvite, actor)
	return e.record("group_invitations", "insert", allowed)
}

// CanUpdateInvitation allows inviter, invitee, group managers, and
// allow_invite grants. Only the status column is mutable through this path.
func (e *Evaluator) CanUpdateInvitation(actor Actor, group *models.Group, invitation *models.GroupInvitation, actorMembership *models.GroupMembership) bool {
	if invitation == nil || actor.IsAnonymous() {
		return e.record("group_invitations", "update", false)
	}
	allowed := invitation.InvitedByID == actor.ID ||
		(invitation.InviteeUserID != nil && *invitation.InviteeUserID == actor.ID) ||
		managesGroup(actor, group, actorMembership) ||
		(group != nil && listAllows(group.AllowInvite, actor))
	return e.record("group_invitations", "update", allowed)
}

// CanRequestJoin reports an allow_request grant, consulted by the join gate
// for invite_only groups.
func (e *Evaluator) CanRequestJoin(actor Actor, group *models.Group) bool {
	return group != nil && listAllows(group.AllowRequest, actor)
}

// HasJoinBypass reports an allow_join grant, which forces approval regardless
// of join policy.
func (e *Evaluator) HasJoinBypass(actor Actor, group *models.Group) bool {
	return group != nil && listAllows(group.AllowJoin, actor)
}
