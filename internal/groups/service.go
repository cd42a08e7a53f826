package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarceau/groupline-backend/internal/memberships"
	"github.com/davidmarceau/groupline-backend/internal/policy"
	"github.com/davidmarceau/groupline-backend/pkg/db"
	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	dbtypes "github.com/davidmarceau/groupline-backend/pkg/db/types"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
	"github.com/davidmarceau/groupline-backend/pkg/metrics"
	"github.com/davidmarceau/groupline-backend/pkg/pagination"
	"github.com/davidmarceau/groupline-backend/pkg/types"
)

type groupRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id uuid.UUID) error
	CreateTx(tx *gorm.DB, group *models.Group) error
	List(ctx context.Context, actor policy.Actor, filter ListFilter) ([]models.Group, error)
	ActorMemberships(ctx context.Context, actor policy.Actor, groupIDs []uuid.UUID) (map[string]*models.GroupMembership, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes group operations.
type Service interface {
	Create(ctx context.Context, actor policy.Actor, input CreateGroupInput) (*GroupDTO, error)
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*GroupDTO, error)
	List(ctx context.Context, actor policy.Actor, filter ListFilter) (*ListResult, error)
	Update(ctx context.Context, actor policy.Actor, id uuid.UUID, input UpdateGroupInput) (*GroupDTO, error)
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error
	TransferOwnership(ctx context.Context, actor policy.Actor, groupID uuid.UUID, newOwnerID *uuid.UUID) (*GroupDTO, error)
}

type service struct {
	repo    groupRepository
	tx      txRunner
	eval    *policy.Evaluator
	metrics *metrics.PolicyMetrics
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo          groupRepository
	Tx            txRunner
	Evaluator     *policy.Evaluator
	PolicyMetrics *metrics.PolicyMetrics
}

// NewService constructs the group service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("group repository is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Evaluator == nil {
		return nil, fmt.Errorf("policy evaluator is required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		eval:    params.Evaluator,
		metrics: params.PolicyMetrics,
	}, nil
}

// Create inserts a group and bootstraps the owner membership in the same
// transaction. created_by_id is force-set to the actor; owner_id defaults to
// the creator.
func (s *service) Create(ctx context.Context, actor policy.Actor, input CreateGroupInput) (*GroupDTO, error) {
	if !s.eval.CanInsertGroup(actor) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	group, err := buildGroup(actor, input)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if createErr := s.repo.CreateTx(tx, group); createErr != nil {
			if db.IsUniqueViolation(createErr) {
				return pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create group")
		}

		if group.OwnerID != nil {
			created, cascadeErr := ensureOwnerMembership(tx, group.ID, *group.OwnerID, group.CreatedByID)
			if cascadeErr != nil {
				s.metrics.IncCascade("owner_bootstrap", false)
				return cascadeErr
			}
			s.metrics.IncCascade("owner_bootstrap", created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return FromModel(group), nil
}

func buildGroup(actor policy.Actor, input CreateGroupInput) (*models.Group, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = enums.GroupVisibilityPublic
	}
	if !visibility.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid visibility %q", visibility))
	}
	joinPolicy := input.JoinPolicy
	if joinPolicy == "" {
		joinPolicy = enums.JoinPolicyByRequest
	}
	if !joinPolicy.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid join policy %q", joinPolicy))
	}

	ownerID := input.OwnerID
	if ownerID == nil {
		id := actor.ID
		ownerID = &id
	}

	group := &models.Group{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		CreatedByID: actor.ID,
		Title:       title,
		Slug:        slug,
		Description: input.Description,
		AvatarURL:   input.AvatarURL,
		Kind:        input.Kind,
		Namespace:   input.Namespace,
		Visibility:  visibility,
		JoinPolicy:  joinPolicy,
		Attributes:  types.Attributes(input.Attributes),
		Tags:        toStringSet(input.Tags),

		AllowView:          toStringSet(input.AllowView),
		AllowRequest:       toStringSet(input.AllowRequest),
		AllowJoin:          toStringSet(input.AllowJoin),
		AllowInvite:        toStringSet(input.AllowInvite),
		AllowManageMembers: toStringSet(input.AllowManageMembers),
		AllowUpdateGroup:   toStringSet(input.AllowUpdateGroup),
		AllowDeleteGroup:   toStringSet(input.AllowDeleteGroup),
	}

	if err := validateAllowLists(group); err != nil {
		return nil, err
	}
	return group, nil
}

func validateAllowLists(group *models.Group) error {
	lists := map[string]dbtypes.StringSet{
		"allow_view":           group.AllowView,
		"allow_request":        group.AllowRequest,
		"allow_join":           group.AllowJoin,
		"allow_invite":         group.AllowInvite,
		"allow_manage_members": group.AllowManageMembers,
		"allow_update_group":   group.AllowUpdateGroup,
		"allow_delete_group":   group.AllowDeleteGroup,
	}
	for name, list := range lists {
		if _, err := policy.ParseAllowList(list); err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s: %v", name, err))
		}
	}
	return nil
}

// ensureOwnerMembership makes the owner's approved owner-role membership
// exist: an effective row is promoted in place, otherwise a fresh row is
// inserted. A concurrent insert losing the unique race counts as already
// present. Reports whether a row was created or changed.
func ensureOwnerMembership(tx *gorm.DB, groupID, ownerID, createdBy uuid.UUID) (bool, error) {
	existing, err := memberships.FindEffectiveTx(tx, groupID, ownerID)
	if err == nil {
		if existing.Role == enums.MemberRoleOwner && existing.Status == enums.MembershipStatusApproved {
			return false, nil
		}
		existing.Role = enums.MemberRoleOwner
		existing.Status = enums.MembershipStatusApproved
		if saveErr := memberships.SaveTx(tx, existing); saveErr != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "promote owner membership")
		}
		return true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load owner membership")
	}

	row := &models.GroupMembership{
		ID:          uuid.New(),
		GroupID:     groupID,
		UserID:      ownerID,
		Role:        enums.MemberRoleOwner,
		Status:      enums.MembershipStatusApproved,
		CreatedByID: createdBy,
	}
	if createErr := memberships.CreateTx(tx, row); createErr != nil {
		if db.IsUniqueViolation(createErr) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create owner membership")
	}
	return true, nil
}

func (s *service) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*GroupDTO, error) {
	group, _, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return FromModel(group), nil
}

func (s *service) loadVisible(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Group, *models.GroupMembership, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}

	membershipsByGroup, err := s.repo.ActorMemberships(ctx, actor, []uuid.UUID{group.ID})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load actor membership")
	}
	membership := membershipsByGroup[group.ID.String()]

	if !s.eval.CanSelectGroup(actor, group, membership) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
	}
	return group, membership, nil
}

func (s *service) List(ctx context.Context, actor policy.Actor, filter ListFilter) (*ListResult, error) {
	rows, err := s.repo.List(ctx, actor, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list groups")
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID)
	}
	membershipsByGroup, err := s.repo.ActorMemberships(ctx, actor, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load actor memberships")
	}

	visible := s.eval.FilterGroups(actor, rows, membershipsByGroup)

	normalized := pagination.NormalizeLimit(filter.Limit)
	next := ""
	if len(visible) > normalized {
		visible = visible[:normalized]
		last := visible[len(visible)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &ListResult{Groups: FromModels(visible), NextCursor: next}, nil
}

func (s *service) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, input UpdateGroupInput) (*GroupDTO, error) {
	group, membership, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if !s.eval.CanUpdateGroup(actor, group, membership) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot update this group")
	}

	if err := applyGroupPatch(group, input); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, group); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group")
	}
	return FromModel(group), nil
}

func applyGroupPatch(group *models.Group, input UpdateGroupInput) error {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		group.Title = title
	}
	if input.Description != nil {
		group.Description = cloneStringPtr(input.Description)
	}
	if input.AvatarURL != nil {
		group.AvatarURL = cloneStringPtr(input.AvatarURL)
	}
	if input.Kind != nil {
		group.Kind = cloneStringPtr(input.Kind)
	}
	if input.Visibility != nil {
		if !input.Visibility.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid visibility %q", *input.Visibility))
		}
		group.Visibility = *input.Visibility
	}
	if input.JoinPolicy != nil {
		if !input.JoinPolicy.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid join policy %q", *input.JoinPolicy))
		}
		group.JoinPolicy = *input.JoinPolicy
	}
	if input.Attributes != nil {
		group.Attributes = types.Attributes(*input.Attributes)
	}
	if input.Tags != nil {
		group.Tags = toStringSet(*input.Tags)
	}

	if input.AllowView != nil {
		group.AllowView = toStringSet(*input.AllowView)
	}
	if input.AllowRequest != nil {
		group.AllowRequest = toStringSet(*input.AllowRequest)
	}
	if input.AllowJoin != nil {
		group.AllowJoin = toStringSet(*input.AllowJoin)
	}
	if input.AllowInvite != nil {
		group.AllowInvite = toStringSet(*input.AllowInvite)
	}
	if input.AllowManageMembers != nil {
		group.AllowManageMembers = toStringSet(*input.AllowManageMembers)
	}
	if input.AllowUpdateGroup != nil {
		group.AllowUpdateGroup = toStringSet(*input.AllowUpdateGroup)
	}
	if input.AllowDeleteGroup != nil {
		group.AllowDeleteGroup = toStringSet(*input.AllowDeleteGroup)
	}

	return validateAllowLists(group)
}

func (s *service) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	group, _, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return err
	}

	if !s.eval.CanDeleteGroup(actor, group) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete this group")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete group")
	}
	return nil
}

// TransferOwnership executes one of the three legal transfer shapes under a
// row lock. The group is re-read inside the transaction so a racing claim
// sees the winner's committed owner_id and fails the policy check.
func (s *service) TransferOwnership(ctx context.Context, actor policy.Actor, groupID uuid.UUID, newOwnerID *uuid.UUID) (*GroupDTO, error) {
	var result *models.Group

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		group, err := FindByIDForUpdate(tx, groupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}

		actorMembership := findMembershipTx(tx, group.ID, actor.ID)
		var candidateMembership *models.GroupMembership
		if newOwnerID != nil {
			candidateMembership = findMembershipTx(tx, group.ID, *newOwnerID)
		}

		kind, err := s.eval.DecideTransfer(actor, policy.TransferInput{
			Group:               group,
			NewOwnerID:          newOwnerID,
			ActorMembership:     actorMembership,
			CandidateMembership: candidateMembership,
		})
		if err != nil {
			return err
		}

		switch kind {
		case policy.TransferResignation:
			if err := resignOwner(tx, group, actorMembership); err != nil {
				s.metrics.IncCascade(string(kind), false)
				return err
			}

		case policy.TransferClaim, policy.TransferHandover:
			if err := assignOwner(tx, group, *newOwnerID, actor.ID); err != nil {
				s.metrics.IncCascade(string(kind), false)
				return err
			}
		}

		s.metrics.IncCascade(string(kind), true)
		result = group
		return nil
	})
	if err != nil {
		return nil, err
	}

	return FromModel(result), nil
}

func findMembershipTx(tx *gorm.DB, groupID, userID uuid.UUID) *models.GroupMembership {
	if userID == uuid.Nil {
		return nil
	}
	membership, err := memberships.FindEffectiveTx(tx, groupID, userID)
	if err != nil {
		return nil
	}
	return membership
}

// resignOwner vacates owner_id and moves the owner's membership to left.
func resignOwner(tx *gorm.DB, group *models.Group, ownerMembership *models.GroupMembership) error {
	group.OwnerID = nil
	if err := SaveTx(tx, group); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "vacate group owner")
	}

	if ownerMembership != nil && ownerMembership.Status == enums.MembershipStatusApproved {
		if err := memberships.ValidateTransition(ownerMembership.Status, enums.MembershipStatusLeft); err != nil {
			return err
		}
		ownerMembership.Status = enums.MembershipStatusLeft
		if err := memberships.SaveTx(tx, ownerMembership); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire owner membership")
		}
	}
	return nil
}

// assignOwner sets owner_id, demotes the previous owner's membership to
// admin, and bootstraps the new owner's owner-role membership.
func assignOwner(tx *gorm.DB, group *models.Group, newOwnerID, actorID uuid.UUID) error {
	previousOwner := group.OwnerID
	owner := newOwnerID
	group.OwnerID = &owner
	if err := SaveTx(tx, group); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign group owner")
	}

	if previousOwner != nil && *previousOwner != newOwnerID {
		if prev := findMembershipTx(tx, group.ID, *previousOwner); prev != nil && prev.Role == enums.MemberRoleOwner {
			prev.Role = enums.MemberRoleAdmin
			if err := memberships.SaveTx(tx, prev); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "demote previous owner")
			}
		}
	}

	if _, err := ensureOwnerMembership(tx, group.ID, newOwnerID, actorID); err != nil {
		return err
	}
	return nil
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	cpy := *value
	return &cpy
}
