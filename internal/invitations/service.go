package invitations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarceau/groupline-backend/internal/memberships"
	"github.com/davidmarceau/groupline-backend/internal/policy"
	"github.com/davidmarceau/groupline-backend/pkg/config"
	"github.com/davidmarceau/groupline-backend/pkg/db"
	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
	"github.com/davidmarceau/groupline-backend/pkg/metrics"
	"github.com/davidmarceau/groupline-backend/pkg/pagination"
	"github.com/davidmarceau/groupline-backend/pkg/security"
)

type invitationRepository interface {
	FindByToken(ctx context.Context, token string) (*models.GroupInvitation, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID, params pagination.Params) ([]models.GroupInvitation, error)
	ListVisible(ctx context.Context, actor policy.Actor, params pagination.Params) ([]models.GroupInvitation, error)
}

type groupLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
}

type membershipLoader interface {
	FindEffective(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMembership, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes invitation operations.
type Service interface {
	Invite(ctx context.Context, actor policy.Actor, groupID uuid.UUID, input InviteInput) (*InvitationDTO, error)
	Respond(ctx context.Context, actor policy.Actor, token string, action ResponseAction) (*InvitationDTO, error)
	ListByGroup(ctx context.Context, actor policy.Actor, groupID uuid.UUID, params pagination.Params) (*ListResult, error)
	ListMine(ctx context.Context, actor policy.Actor, params pagination.Params) (*ListResult, error)
}

type service struct {
	repo        invitationRepository
	groups      groupLoader
	memberships membershipLoader
	tx          txRunner
	eval        *policy.Evaluator
	engineCfg   config.EngineConfig
	metrics     *metrics.PolicyMetrics
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo          invitationRepository
	Groups        groupLoader
	Memberships   membershipLoader
	Tx            txRunner
	Evaluator     *policy.Evaluator
	EngineConfig  config.EngineConfig
	PolicyMetrics *metrics.PolicyMetrics
}

// NewService constructs the invitation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("invitation repository is required")
	}
	if params.Groups == nil {
		return nil, fmt.Errorf("group loader is required")
	}
	if params.Memberships == nil {
		return nil, fmt.Errorf("membership loader is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Evaluator == nil {
		return nil, fmt.Errorf("policy evaluator is required")
	}
	return &service{
		repo:        params.Repo,
		groups:      params.Groups,
		memberships: params.Memberships,
		tx:          params.Tx,
		eval:        params.Evaluator,
		engineCfg:   params.EngineConfig,
		metrics:     params.PolicyMetrics,
	}, nil
}

func (s *service) loadGroup(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	return group, nil
}

func (s *service) actorMembership(ctx context.Context, actor policy.Actor, groupID uuid.UUID) (*models.GroupMembership, error) {
	if actor.IsAnonymous() {
		return nil, nil
	}
	membership, err := s.memberships.FindEffective(ctx, groupID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load actor membership")
	}
	return membership, nil
}

// Invite creates a pending invitation. invited_by_id, token, and status are
// server-attributed regardless of client input; expiry falls back to the
// configured invitation TTL.
func (s *service) Invite(ctx context.Context, actor policy.Actor, groupID uuid.UUID, input InviteInput) (*InvitationDTO, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	actorMembership, err := s.actorMembership(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}

	if !s.eval.CanInsertInvitation(actor, group, actorMembership) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot invite to this group")
	}

	token, err := security.GenerateInvitationToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invitation token")
	}

	expiresAt := input.ExpiresAt
	if expiresAt == nil && s.engineCfg.InvitationTTL > 0 {
		deadline := time.Now().UTC().Add(s.engineCfg.InvitationTTL)
		expiresAt = &deadline
	}

	invitation := &models.GroupInvitation{
		ID:            uuid.New(),
		GroupID:       group.ID,
		Token:         token,
		InviteeUserID: input.InviteeUserID,
		InvitedByID:   actor.ID,
		Status:        enums.InvitationStatusPending,
		ExpiresAt:     expiresAt,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if createErr := CreateTx(tx, invitation); createErr != nil {
			if db.IsUniqueViolation(createErr) {
				return pkgerrors.New(pkgerrors.CodeConflict, "invitation token collision, retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create invitation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ToDTO(invitation), nil
}

// Respond accepts or revokes a pending invitation. Acceptance binds an
// unbound invitation to the accepting actor and inserts the member row in the
// same transaction.
func (s *service) Respond(ctx context.Context, actor policy.Actor, token string, action ResponseAction) (*InvitationDTO, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid response action %q", action))
	}

	var result *models.GroupInvitation
	var expired bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		invitation, err := FindByTokenTx(tx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invitation")
		}

		group, err := s.loadGroup(ctx, invitation.GroupID)
		if err != nil {
			return err
		}
		actorMembership := findMembershipTx(tx, invitation.GroupID, actor.ID)

		if err := s.authorizeResponse(actor, group, invitation, actorMembership, action); err != nil {
			return err
		}

		if invitation.Status != enums.InvitationStatusPending {
			return pkgerrors.New(
				pkgerrors.CodeStateConflict,
				fmt.Sprintf("invitation is already %s", invitation.Status),
			)
		}

		// lapsed invitations get marked expired; that write commits even
		// though the response itself is rejected
		if invitation.ExpiresAt != nil && invitation.ExpiresAt.Before(time.Now().UTC()) {
			invitation.Status = enums.InvitationStatusExpired
			if saveErr := SaveTx(tx, invitation); saveErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "expire invitation")
			}
			expired = true
			result = invitation
			return nil
		}

		switch action {
		case ResponseAccept:
			if invitation.InviteeUserID == nil {
				invitee := actor.ID
				invitation.InviteeUserID = &invitee
			}
			invitation.Status = enums.InvitationStatusAccepted
			if saveErr := SaveTx(tx, invitation); saveErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "accept invitation")
			}

			created, cascadeErr := s.insertInvitedMember(tx, group, invitation)
			if cascadeErr != nil {
				s.metrics.IncCascade("invitation_member", false)
				return cascadeErr
			}
			s.metrics.IncCascade("invitation_member", created)

		case ResponseRevoke:
			invitation.Status = enums.InvitationStatusRevoked
			if saveErr := SaveTx(tx, invitation); saveErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "revoke invitation")
			}
		}

		result = invitation
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invitation has expired")
	}

	return ToDTO(result), nil
}

// authorizeResponse gates who may act on the invitation. Possession of the
// token authorizes accepting an unbound invitation; everything else goes
// through the update predicate.
func (s *service) authorizeResponse(actor policy.Actor, group *models.Group, invitation *models.GroupInvitation, actorMembership *models.GroupMembership, action ResponseAction) error {
	if action == ResponseAccept && invitation.InviteeUserID == nil {
		return nil
	}
	if action == ResponseAccept {
		if invitation.InviteeUserID != nil && *invitation.InviteeUserID == actor.ID {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the invitee may accept")
	}
	if !s.eval.CanUpdateInvitation(actor, group, invitation, actorMembership) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot modify this invitation")
	}
	return nil
}

// insertInvitedMember is the acceptance cascade: an approved member row
// attributed to the inviter, created by the invitee. An existing effective
// membership makes it a no-op. A closed join policy blocks every join,
// invited or not, so the cascade rejects it (barring an allow_join grant)
// and the whole acceptance rolls back.
func (s *service) insertInvitedMember(tx *gorm.DB, group *models.Group, invitation *models.GroupInvitation) (bool, error) {
	invitee := *invitation.InviteeUserID

	if group.JoinPolicy == enums.JoinPolicyClosed && !s.eval.HasJoinBypass(policy.User(invitee), group) {
		return false, pkgerrors.New(pkgerrors.CodeForbidden, "group is closed")
	}

	if _, err := memberships.FindEffectiveTx(tx, invitation.GroupID, invitee); err == nil {
		return false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing membership")
	}

	inviter := invitation.InvitedByID
	row := &models.GroupMembership{
		ID:          uuid.New(),
		GroupID:     invitation.GroupID,
		UserID:      invitee,
		Role:        enums.MemberRoleMember,
		Status:      enums.MembershipStatusApproved,
		InvitedByID: &inviter,
		CreatedByID: invitee,
	}
	if err := memberships.CreateTx(tx, row); err != nil {
		if db.IsUniqueViolation(err) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invited membership")
	}
	return true, nil
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

// ListByGroup returns the group's invitations visible to the actor.
func (s *service) ListByGroup(ctx context.Context, actor policy.Actor, groupID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	actorMembership, err := s.actorMembership(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListByGroup(ctx, groupID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invitations")
	}

	visible := make([]models.GroupInvitation, 0, len(rows))
	for i := range rows {
		if s.eval.CanSelectInvitation(actor, group, &rows[i], actorMembership) {
			visible = append(visible, rows[i])
		}
	}
	return buildListResult(visible, params.Limit), nil
}

// ListMine returns invitations where the actor is invitee or inviter, plus
// those of groups they manage.
func (s *service) ListMine(ctx context.Context, actor policy.Actor, params pagination.Params) (*ListResult, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	rows, err := s.repo.ListVisible(ctx, actor, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invitations")
	}
	return buildListResult(rows, params.Limit), nil
}

func buildListResult(rows []models.GroupInvitation, limit int) *ListResult {
	normalized := pagination.NormalizeLimit(limit)
	next := ""
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &ListResult{Invitations: ToDTOs(rows), NextCursor: next}
}
