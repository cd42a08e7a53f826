package groups

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidmarceau/groupline-backend/internal/policy"
	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	dbtypes "github.com/davidmarceau/groupline-backend/pkg/db/types"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
)

func setupGroupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	groups := `
CREATE TABLE IF NOT EXISTS groups (
  id TEXT PRIMARY KEY,
  owner_id TEXT,
  created_by_id TEXT NOT NULL,
  title TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  description TEXT,
  avatar_url TEXT,
  kind TEXT,
  namespace TEXT,
  visibility TEXT NOT NULL DEFAULT 'public',
  join_policy TEXT NOT NULL DEFAULT 'by_request',
  attributes TEXT,
  tags TEXT,
  allow_view TEXT,
  allow_request TEXT,
  allow_join TEXT,
  allow_invite TEXT,
  allow_manage_members TEXT,
  allow_update_group TEXT,
  allow_delete_group TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	memberships := `
CREATE TABLE IF NOT EXISTS group_memberships (
  id TEXT PRIMARY KEY,
  group_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'member',
  status TEXT NOT NULL DEFAULT 'request',
  invited_by_id TEXT,
  created_by_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	effectiveIdx := `
CREATE UNIQUE INDEX IF NOT EXISTS uniq_group_memberships_effective
  ON group_memberships(group_id, user_id)
  WHERE status IN ('request', 'approved');`

	require.NoError(t, db.Exec(groups).Error)
	require.NoError(t, db.Exec(memberships).Error)
	require.NoError(t, db.Exec(effectiveIdx).Error)
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(db),
		Tx:        testTxRunner{db: db},
		Evaluator: policy.NewEvaluator(nil),
	})
	require.NoError(t, err)
	return svc
}

func membershipFor(t *testing.T, db *gorm.DB, groupID, userID uuid.UUID) *models.GroupMembership {
	t.Helper()
	var row models.GroupMembership
	err := db.
		Where("group_id = ? AND user_id = ? AND status IN ?",
			groupID, userID,
			[]enums.MembershipStatus{enums.MembershipStatusRequest, enums.MembershipStatusApproved}).
		First(&row).Error
	require.NoError(t, err)
	return &row
}

func seedMember(t *testing.T, db *gorm.DB, groupID, userID uuid.UUID, role enums.MemberRole) *models.GroupMembership {
	t.Helper()
	row := &models.GroupMembership{
		ID:          uuid.New(),
		GroupID:     groupID,
		UserID:      userID,
		Role:        role,
		Status:      enums.MembershipStatusApproved,
		CreatedByID: userID,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestCreateBootstrapsOwnerMembership(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	creator := policy.User(uuid.New())
	dto, err := svc.Create(ctx, creator, CreateGroupInput{
		Title: "Backyard Growers",
		Slug:  uuid.NewString(),
	})
	require.NoError(t, err)

	require.NotNil(t, dto.OwnerID)
	assert.Equal(t, creator.ID, *dto.OwnerID)
	assert.Equal(t, creator.ID, dto.CreatedByID)
	assert.Equal(t, enums.GroupVisibilityPublic, dto.Visibility)
	assert.Equal(t, enums.JoinPolicyByRequest, dto.JoinPolicy)

	owner := membershipFor(t, db, dto.ID, creator.ID)
	assert.Equal(t, enums.MemberRoleOwner, owner.Role)
	assert.Equal(t, enums.MembershipStatusApproved, owner.Status)

	var count int64
	require.NoError(t, db.Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ? AND role = ?", dto.ID, creator.ID, enums.MemberRoleOwner).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateAnonymousUnauthorized(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Create(context.Background(), policy.Anonymous(), CreateGroupInput{
		Title: "No",
		Slug:  uuid.NewString(),
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestCreateRejectsBadAllowListTokens(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Create(context.Background(), policy.User(uuid.New()), CreateGroupInput{
		Title:     "Bad Tokens",
		Slug:      uuid.NewString(),
		AllowJoin: []string{"superuser"},
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCreateDuplicateSlugConflicts(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	actor := policy.User(uuid.New())

	slug := uuid.NewString()
	_, err := svc.Create(ctx, actor, CreateGroupInput{Title: "One", Slug: slug})
	require.NoError(t, err)

	_, err = svc.Create(ctx, policy.User(uuid.New()), CreateGroupInput{Title: "Two", Slug: slug})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestGetHidesPrivateGroups(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	owner := policy.User(uuid.New())
	dto, err := svc.Create(ctx, owner, CreateGroupInput{
		Title:      "Hidden",
		Slug:       uuid.NewString(),
		Visibility: enums.GroupVisibilityPrivate,
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, policy.User(uuid.New()), dto.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	got, err := svc.Get(ctx, owner, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.ID, got.ID)
}

func TestListFiltersByVisibility(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	owner := policy.User(uuid.New())
	member := policy.User(uuid.New())

	public, err := svc.Create(ctx, owner, CreateGroupInput{
		Title: "Public", Slug: uuid.NewString(),
	})
	require.NoError(t, err)

	private, err := svc.Create(ctx, owner, CreateGroupInput{
		Title: "Private", Slug: uuid.NewString(), Visibility: enums.GroupVisibilityPrivate,
	})
	require.NoError(t, err)
	seedMember(t, db, private.ID, member.ID, enums.MemberRoleMember)

	secret, err := svc.Create(ctx, owner, CreateGroupInput{
		Title: "Secret", Slug: uuid.NewString(), Visibility: enums.GroupVisibilitySecret,
	})
	require.NoError(t, err)

	contains := func(result *ListResult, id uuid.UUID) bool {
		for _, g := range result.Groups {
			if g.ID == id {
				return true
			}
		}
		return false
	}

	anonView, err := svc.List(ctx, policy.Anonymous(), ListFilter{})
	require.NoError(t, err)
	assert.True(t, contains(anonView, public.ID))
	assert.False(t, contains(anonView, private.ID))
	assert.False(t, contains(anonView, secret.ID))

	memberView, err := svc.List(ctx, member, ListFilter{})
	require.NoError(t, err)
	assert.True(t, contains(memberView, public.ID))
	assert.True(t, contains(memberView, private.ID))
	assert.False(t, contains(memberView, secret.ID))

	ownerView, err := svc.List(ctx, owner, ListFilter{})
	require.NoError(t, err)
	assert.True(t, contains(ownerView, secret.ID))

	staffView, err := svc.List(ctx, policy.Admin(uuid.New()), ListFilter{})
	require.NoError(t, err)
	assert.True(t, contains(staffView, secret.ID))
}

func TestUpdateRequiresOwnerOrAdmin(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	owner := policy.User(uuid.New())
	dto, err := svc.Create(ctx, owner, CreateGroupInput{Title: "Before", Slug: uuid.NewString()})
	require.NoError(t, err)

	title := "After"
	_, err = svc.Update(ctx, policy.User(uuid.New()), dto.ID, UpdateGroupInput{Title: &title})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	updated, err := svc.Update(ctx, owner, dto.ID, UpdateGroupInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)

	adminID := uuid.New()
	seedMember(t, db, dto.ID, adminID, enums.MemberRoleAdmin)
	title2 := "Again"
	updated, err = svc.Update(ctx, policy.User(adminID), dto.ID, UpdateGroupInput{Title: &title2})
	require.NoError(t, err)
	assert.Equal(t, "Again", updated.Title)
}

func TestDeleteRequiresOwnerOrGrant(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	owner := policy.User(uuid.New())
	granted := policy.User(uuid.New())
	dto, err := svc.Create(ctx, owner, CreateGroupInput{
		Title:            "Deletable",
		Slug:             uuid.NewString(),
		AllowDeleteGroup: []string{granted.ID.String()},
	})
	require.NoError(t, err)

	err = svc.Delete(ctx, policy.User(uuid.New()), dto.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	require.NoError(t, svc.Delete(ctx, granted, dto.ID))
}

func TestTransferResignation(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	owner := policy.User(uuid.New())
	dto, err := svc.Create(ctx, owner, CreateGroupInput{Title: "Resign", Slug: uuid.NewString()})
	require.NoError(t, err)

	result, err := svc.TransferOwnership(ctx, owner, dto.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, result.OwnerID)

	var row models.GroupMembership
	require.NoError(t, db.First(&row, "group_id = ? AND user_id = ?", dto.ID, owner.ID).Error)
	assert.Equal(t, enums.MembershipStatusLeft, row.Status)
}

func TestTransferHandoverDemotesPreviousOwner(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	owner := policy.User(uuid.New())
	dto, err := svc.Create(ctx, owner, CreateGroupInput{Title: "Handover", Slug: uuid.NewString()})
	require.NoError(t, err)

	memberID := uuid.New()
	seedMember(t, db, dto.ID, memberID, enums.MemberRoleMember)

	result, err := svc.TransferOwnership(ctx, owner, dto.ID, &memberID)
	require.NoError(t, err)
	require.NotNil(t, result.OwnerID)
	assert.Equal(t, memberID, *result.OwnerID)

	newOwnerRow := membershipFor(t, db, dto.ID, memberID)
	assert.Equal(t, enums.MemberRoleOwner, newOwnerRow.Role)
	assert.Equal(t, enums.MembershipStatusApproved, newOwnerRow.Status)

	prevRow := membershipFor(t, db, dto.ID, owner.ID)
	assert.Equal(t, enums.MemberRoleAdmin, prevRow.Role)
}

func TestTransferHandoverToNonMemberForbidden(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	owner := policy.User(uuid.New())
	dto, err := svc.Create(ctx, owner, CreateGroupInput{Title: "NoStranger", Slug: uuid.NewString()})
	require.NoError(t, err)

	strangerID := uuid.New()
	_, err = svc.TransferOwnership(ctx, owner, dto.ID, &strangerID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestTransferClaimRace(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	owner := policy.User(uuid.New())
	dto, err := svc.Create(ctx, owner, CreateGroupInput{Title: "Vacant", Slug: uuid.NewString()})
	require.NoError(t, err)

	adminA := uuid.New()
	adminB := uuid.New()
	seedMember(t, db, dto.ID, adminA, enums.MemberRoleAdmin)
	seedMember(t, db, dto.ID, adminB, enums.MemberRoleAdmin)

	_, err = svc.TransferOwnership(ctx, owner, dto.ID, nil)
	require.NoError(t, err)

	// first claimant wins
	result, err := svc.TransferOwnership(ctx, policy.User(adminA), dto.ID, &adminA)
	require.NoError(t, err)
	require.NotNil(t, result.OwnerID)
	assert.Equal(t, adminA, *result.OwnerID)

	// second claimant re-reads committed state and loses
	_, err = svc.TransferOwnership(ctx, policy.User(adminB), dto.ID, &adminB)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestTransferClaimByPlainMemberForbidden(t *testing.T) {
	db := setupGroupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	owner := policy.User(uuid.New())
	dto, err := svc.Create(ctx, owner, CreateGroupInput{Title: "MembersOnly", Slug: uuid.NewString()})
	require.NoError(t, err)

	memberID := uuid.New()
	seedMember(t, db, dto.ID, memberID, enums.MemberRoleMember)

	_, err = svc.TransferOwnership(ctx, owner, dto.ID, nil)
	require.NoError(t, err)

	_, err = svc.TransferOwnership(ctx, policy.User(memberID), dto.ID, &memberID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestEnsureOwnerMembershipIdempotent(t *testing.T) {
	db := setupGroupTestDB(t)
	ctx := context.Background()

	ownerID := uuid.New()
	group := &models.Group{
		ID:          uuid.New(),
		OwnerID:     &ownerID,
		CreatedByID: ownerID,
		Title:       "Idempotent",
		Slug:        uuid.NewString(),
		Visibility:  enums.GroupVisibilityPublic,
		JoinPolicy:  enums.JoinPolicyOpen,
		Tags:        dbtypes.StringSet{},
	}
	require.NoError(t, db.WithContext(ctx).Create(group).Error)

	created, err := ensureOwnerMembership(db, group.ID, ownerID, ownerID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = ensureOwnerMembership(db, group.ID, ownerID, ownerID)
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", group.ID, ownerID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
