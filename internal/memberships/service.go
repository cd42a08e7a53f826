package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarceau/groupline-backend/internal/policy"
	"github.com/davidmarceau/groupline-backend/pkg/config"
	"github.com/davidmarceau/groupline-backend/pkg/db"
	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
	"github.com/davidmarceau/groupline-backend/pkg/metrics"
	"github.com/davidmarceau/groupline-backend/pkg/pagination"
)

type membershipRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.GroupMembership, error)
	FindEffective(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMembership, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID, params pagination.Params) ([]models.GroupMembership, error)
	ListVisible(ctx context.Context, actor policy.Actor, params pagination.Params) ([]models.GroupMembership, error)
}

type groupLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes membership operations: the join gate, the status state
// machine, and role management.
type Service interface {
	Join(ctx context.Context, actor policy.Actor, groupID uuid.UUID, input JoinInput) (*MembershipDTO, error)
	SetStatus(ctx context.Context, actor policy.Actor, membershipID uuid.UUID, status enums.MembershipStatus) (*MembershipDTO, error)
	SetRole(ctx context.Context, actor policy.Actor, membershipID uuid.UUID, role enums.MemberRole) (*MembershipDTO, error)
	Leave(ctx context.Context, actor policy.Actor, groupID uuid.UUID) (*MembershipDTO, error)
	ListByGroup(ctx context.Context, actor policy.Actor, groupID uuid.UUID, params pagination.Params) (*ListResult, error)
	ListMine(ctx context.Context, actor policy.Actor, params pagination.Params) (*ListResult, error)
}

type service struct {
	repo      membershipRepository
	groups    groupLoader
	tx        txRunner
	eval      *policy.Evaluator
	engineCfg config.EngineConfig
	metrics   *metrics.PolicyMetrics
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo          membershipRepository
	Groups        groupLoader
	Tx            txRunner
	Evaluator     *policy.Evaluator
	EngineConfig  config.EngineConfig
	PolicyMetrics *metrics.PolicyMetrics
}

// NewService constructs the membership service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("membership repository is required")
	}
	if params.Groups == nil {
		return nil, fmt.Errorf("group loader is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Evaluator == nil {
		return nil, fmt.Errorf("policy evaluator is required")
	}
	return &service{
		repo:      params.Repo,
		groups:    params.Groups,
		tx:        params.Tx,
		eval:      params.Evaluator,
		engineCfg: params.EngineConfig,
		metrics:   params.PolicyMetrics,
	}, nil
}

func (s *service) loadGroupVisible(ctx context.Context, actor policy.Actor, groupID uuid.UUID) (*models.Group, *models.GroupMembership, error) {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}

	actorMembership, err := s.actorMembership(ctx, actor, groupID)
	if err != nil {
		return nil, nil, err
	}

	// hidden rows surface as not found, never as forbidden
	if !s.eval.CanSelectGroup(actor, group, actorMembership) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
	}
	return group, actorMembership, nil
}

func (s *service) actorMembership(ctx context.Context, actor policy.Actor, groupID uuid.UUID) (*models.GroupMembership, error) {
	if actor.IsAnonymous() {
		return nil, nil
	}
	membership, err := s.repo.FindEffective(ctx, groupID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load actor membership")
	}
	return membership, nil
}

// Join runs the join-policy gate and inserts the membership row. The gate's
// clauses are evaluated in order; the first match wins.
func (s *service) Join(ctx context.Context, actor policy.Actor, groupID uuid.UUID, input JoinInput) (*MembershipDTO, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	group, actorMembership, err := s.loadGroupVisible(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}

	targetUserID := actor.ID
	if input.UserID != nil {
		targetUserID = *input.UserID
	}

	row := &models.GroupMembership{
		ID:          uuid.New(),
		GroupID:     group.ID,
		UserID:      targetUserID,
		Role:        enums.MemberRoleMember,
		Status:      enums.MembershipStatusRequest,
		CreatedByID: actor.ID,
	}
	// role, status, and invite attribution are honored only from managers
	// adding members; a plain self-join carries no privileges and its
	// invited_by is always server-set by the acceptance cascade
	if s.eval.IsManager(actor, group, actorMembership) {
		if input.Role != nil {
			row.Role = *input.Role
		}
		if input.Status != nil {
			row.Status = *input.Status
		}
		row.InvitedByID = input.InvitedByID
	}

	if !s.eval.CanInsertMembership(actor, group, row, actorMembership) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot add members to this group")
	}

	if err := applyJoinGate(s.eval, actor, group, row); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, findErr := FindEffectiveTx(tx, group.ID, targetUserID); findErr == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "an active membership already exists")
		} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "check existing membership")
		}

		if createErr := CreateTx(tx, row); createErr != nil {
			if db.IsUniqueViolation(createErr) {
				return pkgerrors.New(pkgerrors.CodeConflict, "an active membership already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create membership")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ToDTO(row), nil
}

// applyJoinGate mutates the row's status according to the group's join policy.
// Clause order matters; the first match wins.
func applyJoinGate(eval *policy.Evaluator, actor policy.Actor, group *models.Group, row *models.GroupMembership) error {
	// owner bootstrap rows pass through untouched
	if row.Role == enums.MemberRoleOwner && group.OwnerID != nil && row.UserID == *group.OwnerID {
		row.Status = enums.MembershipStatusApproved
		return nil
	}

	if eval.HasJoinBypass(actor, group) {
		row.Status = enums.MembershipStatusApproved
		return nil
	}

	switch group.JoinPolicy {
	case enums.JoinPolicyOpen:
		row.Status = enums.MembershipStatusApproved
		return nil

	case enums.JoinPolicyInviteOnly:
		if row.InvitedByID != nil {
			row.Status = enums.MembershipStatusApproved
			return nil
		}
		if eval.CanRequestJoin(actor, group) {
			row.Status = enums.MembershipStatusRequest
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "group is invite only")

	case enums.JoinPolicyClosed:
		return pkgerrors.New(pkgerrors.CodeForbidden, "group is closed")

	default:
		// by_request and anything unmatched: keep the supplied status,
		// defaulting to request
		if row.Status == "" {
			row.Status = enums.MembershipStatusRequest
		}
		return nil
	}
}

// SetStatus moves a membership through the status state machine.
func (s *service) SetStatus(ctx context.Context, actor policy.Actor, membershipID uuid.UUID, status enums.MembershipStatus) (*MembershipDTO, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	row, err := s.repo.FindByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}

	group, actorMembership, err := s.loadGroupVisible(ctx, actor, row.GroupID)
	if err != nil {
		return nil, err
	}

	if !s.eval.CanUpdateMembership(actor, group, row, actorMembership) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot manage this membership")
	}

	from := row.Status
	if err := ValidateTransition(from, status); err != nil {
		s.metrics.IncTransition(from.String(), status.String(), false)
		return nil, err
	}
	if from == status {
		return ToDTO(row), nil
	}

	row.Status = status
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if saveErr := SaveTx(tx, row); saveErr != nil {
			if db.IsUniqueViolation(saveErr) {
				return pkgerrors.New(pkgerrors.CodeConflict, "an active membership already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "update membership")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncTransition(from.String(), status.String(), false)
		return nil, err
	}

	s.metrics.IncTransition(from.String(), status.String(), true)
	return ToDTO(row), nil
}

// SetRole changes a member's role. Non-managers either get a silent no-op
// (default, the row is returned unchanged) or a forbidden error when strict
// mode is configured.
func (s *service) SetRole(ctx context.Context, actor policy.Actor, membershipID uuid.UUID, role enums.MemberRole) (*MembershipDTO, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid member role %q", role))
	}
	if role == enums.MemberRoleOwner {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner role is assigned through ownership transfer")
	}

	row, err := s.repo.FindByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}

	group, actorMembership, err := s.loadGroupVisible(ctx, actor, row.GroupID)
	if err != nil {
		return nil, err
	}

	if !s.eval.IsManager(actor, group, actorMembership) {
		if s.engineCfg.StrictRoleChange {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot change member roles")
		}
		// zero-effect no-op: the row is returned untouched
		return ToDTO(row), nil
	}

	if row.Role == role {
		return ToDTO(row), nil
	}
	row.Role = role
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if saveErr := SaveTx(tx, row); saveErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "update membership role")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ToDTO(row), nil
}

// Leave moves the actor's own approved membership to left.
func (s *service) Leave(ctx context.Context, actor policy.Actor, groupID uuid.UUID) (*MembershipDTO, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	row, err := s.repo.FindEffective(ctx, groupID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	return s.SetStatus(ctx, actor, row.ID, enums.MembershipStatusLeft)
}

// ListByGroup returns the group's members visible to the actor: managers see
// every row, plain members only their own.
func (s *service) ListByGroup(ctx context.Context, actor policy.Actor, groupID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	group, actorMembership, err := s.loadGroupVisible(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListByGroup(ctx, groupID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}

	visible := make([]models.GroupMembership, 0, len(rows))
	for i := range rows {
		if s.eval.CanSelectMembership(actor, group, &rows[i], actorMembership) {
			visible = append(visible, rows[i])
		}
	}

	return buildListResult(visible, params.Limit), nil
}

// ListMine returns the actor's own membership rows across groups.
func (s *service) ListMine(ctx context.Context, actor policy.Actor, params pagination.Params) (*ListResult, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	rows, err := s.repo.ListVisible(ctx, actor, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}

	own := make([]models.GroupMembership, 0, len(rows))
	for i := range rows {
		if rows[i].UserID == actor.ID {
			own = append(own, rows[i])
		}
	}
	return buildListResult(own, params.Limit), nil
}

func buildListResult(rows []models.GroupMembership, limit int) *ListResult {
	normalized := pagination.NormalizeLimit(limit)
	next := ""
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &ListResult{Memberships: ToDTOs(rows), NextCursor: next}
}
