package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	dbtypes "github.com/davidmarceau/groupline-backend/pkg/db/types"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
)

func newGroup(ownerID *uuid.UUID, visibility enums.GroupVisibility) *models.Group {
	return &models.Group{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Visibility: visibility,
		JoinPolicy: enums.JoinPolicyByRequest,
	}
}

func membershipRow(groupID, userID uuid.UUID, role enums.MemberRole, status enums.MembershipStatus) *models.GroupMembership {
	return &models.GroupMembership{
		ID:      uuid.New(),
		GroupID: groupID,
		UserID:  userID,
		Role:    role,
		Status:  status,
	}
}

func TestCanSelectGroup(t *testing.T) {
	eval := NewEvaluator(nil)
	ownerID := uuid.New()
	memberID := uuid.New()

	public := newGroup(&ownerID, enums.GroupVisibilityPublic)
	private := newGroup(&ownerID, enums.GroupVisibilityPrivate)
	secret := newGroup(&ownerID, enums.GroupVisibilitySecret)

	t.Run("anonymous sees public only", func(t *testing.T) {
		assert.True(t, eval.CanSelectGroup(Anonymous(), public, nil))
		assert.False(t, eval.CanSelectGroup(Anonymous(), private, nil))
		assert.False(t, eval.CanSelectGroup(Anonymous(), secret, nil))
	})

	t.Run("anonymous token in allow_view opens the row", func(t *testing.T) {
		gated := newGroup(&ownerID, enums.GroupVisibilitySecret)
		gated.AllowView = dbtypes.StringSet{"anonymous"}
		assert.True(t, eval.CanSelectGroup(Anonymous(), gated, nil))
	})

	t.Run("approved member sees private", func(t *testing.T) {
		row := membershipRow(private.ID, memberID, enums.MemberRoleMember, enums.MembershipStatusApproved)
		assert.True(t, eval.CanSelectGroup(User(memberID), private, row))
	})

	t.Run("pending requester does not see private", func(t *testing.T) {
		row := membershipRow(private.ID, memberID, enums.MemberRoleMember, enums.MembershipStatusRequest)
		assert.False(t, eval.CanSelectGroup(User(memberID), private, row))
	})

	t.Run("owner sees secret", func(t *testing.T) {
		assert.True(t, eval.CanSelectGroup(User(ownerID), secret, nil))
	})

	t.Run("allow_view user id grant", func(t *testing.T) {
		gated := newGroup(&ownerID, enums.GroupVisibilityPrivate)
		gated.AllowView = dbtypes.StringSet{memberID.String()}
		assert.True(t, eval.CanSelectGroup(User(memberID), gated, nil))
		assert.False(t, eval.CanSelectGroup(User(uuid.New()), gated, nil))
	})

	t.Run("platform staff bypass", func(t *testing.T) {
		assert.True(t, eval.CanSelectGroup(Admin(uuid.New()), secret, nil))
	})
}

func TestCanInsertGroup(t *testing.T) {
	eval := NewEvaluator(nil)
	assert.False(t, eval.CanInsertGroup(Anonymous()))
	assert.True(t, eval.CanInsertGroup(User(uuid.New())))
}

func TestCanUpdateGroup(t *testing.T) {
	eval := NewEvaluator(nil)
	ownerID := uuid.New()
	adminID := uuid.New()
	outsiderID := uuid.New()
	group := newGroup(&ownerID, enums.GroupVisibilityPublic)

	adminRow := membershipRow(group.ID, adminID, enums.MemberRoleAdmin, enums.MembershipStatusApproved)
	kickedAdmin := membershipRow(group.ID, adminID, enums.MemberRoleAdmin, enums.MembershipStatusKicked)

	assert.True(t, eval.CanUpdateGroup(User(ownerID), group, nil))
	assert.True(t, eval.CanUpdateGroup(User(adminID), group, adminRow))
	assert.False(t, eval.CanUpdateGroup(User(adminID), group, kickedAdmin))
	assert.False(t, eval.CanUpdateGroup(User(outsiderID), group, nil))
	assert.False(t, eval.CanUpdateGroup(Anonymous(), group, nil))

	granted := newGroup(&ownerID, enums.GroupVisibilityPublic)
	granted.AllowUpdateGroup = dbtypes.StringSet{outsiderID.String()}
	assert.True(t, eval.CanUpdateGroup(User(outsiderID), granted, nil))
}

func TestCanDeleteGroup(t *testing.T) {
	eval := NewEvaluator(nil)
	ownerID := uuid.New()
	outsiderID := uuid.New()
	group := newGroup(&ownerID, enums.GroupVisibilityPublic)

	assert.True(t, eval.CanDeleteGroup(User(ownerID), group))
	assert.False(t, eval.CanDeleteGroup(User(outsiderID), group))

	group.AllowDeleteGroup = dbtypes.StringSet{"user"}
	assert.True(t, eval.CanDeleteGroup(User(outsiderID), group))
	assert.False(t, eval.CanDeleteGroup(Anonymous(), group))
}

func TestMembershipPredicates(t *testing.T) {
	eval := NewEvaluator(nil)
	ownerID := uuid.New()
	memberID := uuid.New()
	outsiderID := uuid.New()
	group := newGroup(&ownerID, enums.GroupVisibilityPublic)
	row := membershipRow(group.ID, memberID, enums.MemberRoleMember, enums.MembershipStatusApproved)

	t.Run("member reads own row", func(t *testing.T) {
		assert.True(t, eval.CanSelectMembership(User(memberID), group, row, row))
	})

	t.Run("owner reads any row", func(t *testing.T) {
		assert.True(t, eval.CanSelectMembership(User(ownerID), group, row, nil))
	})

	t.Run("outsider cannot read", func(t *testing.T) {
		assert.False(t, eval.CanSelectMembership(User(outsiderID), group, row, nil))
	})

	t.Run("self insert allowed", func(t *testing.T) {
		selfRow := membershipRow(group.ID, outsiderID, enums.MemberRoleMember, enums.MembershipStatusRequest)
		assert.True(t, eval.CanInsertMembership(User(outsiderID), group, selfRow, nil))
	})

	t.Run("insert for someone else needs manager", func(t *testing.T) {
		otherRow := membershipRow(group.ID, uuid.New(), enums.MemberRoleMember, enums.MembershipStatusRequest)
		assert.False(t, eval.CanInsertMembership(User(outsiderID), group, otherRow, nil))
		assert.True(t, eval.CanInsertMembership(User(ownerID), group, otherRow, nil))
	})

	t.Run("manage_members grant unlocks update", func(t *testing.T) {
		granted := newGroup(&ownerID, enums.GroupVisibilityPublic)
		granted.AllowManageMembers = dbtypes.StringSet{outsiderID.String()}
		assert.True(t, eval.CanUpdateMembership(User(outsiderID), granted, row, nil))
		assert.True(t, eval.IsManager(User(outsiderID), granted, nil))
		assert.False(t, eval.IsManager(User(outsiderID), group, nil))
	})
}

func TestInvitationPredicates(t *testing.T) {
	eval := NewEvaluator(nil)
	ownerID := uuid.New()
	inviterID := uuid.New()
	inviteeID := uuid.New()
	outsiderID := uuid.New()
	group := newGroup(&ownerID, enums.GroupVisibilityPublic)

	invitation := &models.GroupInvitation{
		ID:            uuid.New(),
		GroupID:       group.ID,
		InvitedByID:   inviterID,
		InviteeUserID: &inviteeID,
		Status:        enums.InvitationStatusPending,
	}

	assert.True(t, eval.CanSelectInvitation(User(inviterID), group, invitation, nil))
	assert.True(t, eval.CanSelectInvitation(User(inviteeID), group, invitation, nil))
	assert.True(t, eval.CanSelectInvitation(User(ownerID), group, invitation, nil))
	assert.False(t, eval.CanSelectInvitation(User(outsiderID), group, invitation, nil))

	assert.True(t, eval.CanInsertInvitation(User(ownerID), group, nil))
	assert.False(t, eval.CanInsertInvitation(User(outsiderID), group, nil))

	granted := newGroup(&ownerID, enums.GroupVisibilityPublic)
	granted.AllowInvite = dbtypes.StringSet{"user"}
	assert.True(t, eval.CanInsertInvitation(User(outsiderID), granted, nil))

	assert.True(t, eval.CanUpdateInvitation(User(inviteeID), group, invitation, nil))
	assert.False(t, eval.CanUpdateInvitation(User(outsiderID), group, invitation, nil))
}

func TestDecideTransfer(t *testing.T) {
	eval := NewEvaluator(nil)
	ownerID := uuid.New()
	adminID := uuid.New()
	memberID := uuid.New()
	outsiderID := uuid.New()

	t.Run("resignation by owner", func(t *testing.T) {
		group := newGroup(&ownerID, enums.GroupVisibilityPublic)
		kind, err := eval.DecideTransfer(User(ownerID), TransferInput{Group: group})
		require.NoError(t, err)
		assert.Equal(t, TransferResignation, kind)
	})

	t.Run("resignation by non-owner forbidden", func(t *testing.T) {
		group := newGroup(&ownerID, enums.GroupVisibilityPublic)
		_, err := eval.DecideTransfer(User(outsiderID), TransferInput{Group: group})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
	})

	t.Run("claim of vacant group by approved admin", func(t *testing.T) {
		group := newGroup(nil, enums.GroupVisibilityPublic)
		adminRow := membershipRow(group.ID, adminID, enums.MemberRoleAdmin, enums.MembershipStatusApproved)
		kind, err := eval.DecideTransfer(User(adminID), TransferInput{
			Group:           group,
			NewOwnerID:      &adminID,
			ActorMembership: adminRow,
		})
		require.NoError(t, err)
		assert.Equal(t, TransferClaim, kind)
	})

	t.Run("claim by plain member forbidden", func(t *testing.T) {
		group := newGroup(nil, enums.GroupVisibilityPublic)
		memberRow := membershipRow(group.ID, memberID, enums.MemberRoleMember, enums.MembershipStatusApproved)
		_, err := eval.DecideTransfer(User(memberID), TransferInput{
			Group:           group,
			NewOwnerID:      &memberID,
			ActorMembership: memberRow,
		})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
	})

	t.Run("claim loses once owner is set", func(t *testing.T) {
		group := newGroup(&ownerID, enums.GroupVisibilityPublic)
		adminRow := membershipRow(group.ID, adminID, enums.MemberRoleAdmin, enums.MembershipStatusApproved)
		_, err := eval.DecideTransfer(User(adminID), TransferInput{
			Group:           group,
			NewOwnerID:      &adminID,
			ActorMembership: adminRow,
		})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
	})

	t.Run("handover to approved member", func(t *testing.T) {
		group := newGroup(&ownerID, enums.GroupVisibilityPublic)
		candidate := membershipRow(group.ID, memberID, enums.MemberRoleMember, enums.MembershipStatusApproved)
		kind, err := eval.DecideTransfer(User(ownerID), TransferInput{
			Group:               group,
			NewOwnerID:          &memberID,
			CandidateMembership: candidate,
		})
		require.NoError(t, err)
		assert.Equal(t, TransferHandover, kind)
	})

	t.Run("handover to non-member forbidden", func(t *testing.T) {
		group := newGroup(&ownerID, enums.GroupVisibilityPublic)
		_, err := eval.DecideTransfer(User(ownerID), TransferInput{
			Group:      group,
			NewOwnerID: &outsiderID,
		})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
	})

	t.Run("anonymous unauthorized", func(t *testing.T) {
		group := newGroup(&ownerID, enums.GroupVisibilityPublic)
		_, err := eval.DecideTransfer(Anonymous(), TransferInput{Group: group})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
	})

	t.Run("missing group not found", func(t *testing.T) {
		_, err := eval.DecideTransfer(User(ownerID), TransferInput{})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	})
}
