package invitations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarceau/groupline-backend/internal/policy"
	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	"github.com/davidmarceau/groupline-backend/pkg/pagination"
)

// Repository exposes invitation persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByToken loads an invitation by its opaque token.
func (r *Repository) FindByToken(ctx context.Context, token string) (*models.GroupInvitation, error) {
	var invitation models.GroupInvitation
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&invitation).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// CreateTx inserts the invitation inside the caller's transaction.
func CreateTx(tx *gorm.DB, invitation *models.GroupInvitation) error {
	return tx.Create(invitation).Error
}

// SaveTx persists the full invitation row inside the caller's transaction.
func SaveTx(tx *gorm.DB, invitation *models.GroupInvitation) error {
	return tx.Save(invitation).Error
}

// FindByTokenTx loads an invitation by token inside the caller's transaction.
func FindByTokenTx(tx *gorm.DB, token string) (*models.GroupInvitation, error) {
	var invitation models.GroupInvitation
	if err := tx.Where("token = ?", token).First(&invitation).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// ListByGroup returns the group's invitations ordered by creation.
func (r *Repository) ListByGroup(ctx context.Context, groupID uuid.UUID, params pagination.Params) ([]models.GroupInvitation, error) {
	query := r.db.WithContext(ctx).
		Where("group_id = ?", groupID)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.GroupInvitation
	err = query.
		Order("created_at, id").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListVisible returns the invitations the actor may see across groups.
func (r *Repository) ListVisible(ctx context.Context, actor policy.Actor, params pagination.Params) ([]models.GroupInvitation, error) {
	query := r.db.WithContext(ctx).
		Model(&models.GroupInvitation{}).
		Scopes(policy.InvitationListScope(actor))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.GroupInvitation
	err = query.
		Order("created_at, id").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
