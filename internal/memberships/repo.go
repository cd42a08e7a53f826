package memberships

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarceau/groupline-backend/internal/policy"
	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
	"github.com/davidmarceau/groupline-backend/pkg/pagination"
)

// Repository exposes membership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a membership row by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GroupMembership, error) {
	var membership models.GroupMembership
	if err := r.db.WithContext(ctx).First(&membership, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindEffective returns the user's live (request or approved) membership in
// the group, or gorm.ErrRecordNotFound.
func (r *Repository) FindEffective(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMembership, error) {
	return FindEffectiveTx(r.db.WithContext(ctx), groupID, userID)
}

// FindEffectiveTx is the transaction-scoped variant of FindEffective.
func FindEffectiveTx(tx *gorm.DB, groupID, userID uuid.UUID) (*models.GroupMembership, error) {
	var membership models.GroupMembership
	err := tx.
		Where("group_id = ? AND user_id = ? AND status IN ?",
			groupID, userID,
			[]enums.MembershipStatus{enums.MembershipStatusRequest, enums.MembershipStatusApproved}).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// CreateTx inserts the membership inside the caller's transaction.
func CreateTx(tx *gorm.DB, membership *models.GroupMembership) error {
	return tx.Create(membership).Error
}

// SaveTx persists the full membership row inside the caller's transaction.
func SaveTx(tx *gorm.DB, membership *models.GroupMembership) error {
	return tx.Save(membership).Error
}

// ListByGroup returns the group's membership rows ordered by creation.
func (r *Repository) ListByGroup(ctx context.Context, groupID uuid.UUID, params pagination.Params) ([]models.GroupMembership, error) {
	query := r.db.WithContext(ctx).
		Where("group_id = ?", groupID)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.GroupMembership
	err = query.
		Order("created_at, id").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListVisible returns the membership rows the actor may see across all
// groups: their own rows plus groups they own or administer.
func (r *Repository) ListVisible(ctx context.Context, actor policy.Actor, params pagination.Params) ([]models.GroupMembership, error) {
	query := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Scopes(policy.MembershipListScope(actor))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.GroupMembership
	err = query.
		Order("created_at, id").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
