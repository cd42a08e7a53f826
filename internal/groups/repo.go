package groups

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidmarceau/groupline-backend/internal/policy"
	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	"github.com/davidmarceau/groupline-backend/pkg/pagination"
)

// Repository exposes group persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a group by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// FindByIDForUpdate loads a group inside tx holding a row lock, so concurrent
// ownership claims serialize on the same row.
func FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Group, error) {
	query := tx
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var group models.Group
	if err := query.First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// CreateTx inserts the group inside the caller's transaction.
func (r *Repository) CreateTx(tx *gorm.DB, group *models.Group) error {
	return tx.Create(group).Error
}

// Update persists the full group row.
func (r *Repository) Update(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Save(group).Error
}

// SaveTx persists the full group row inside the caller's transaction.
func SaveTx(tx *gorm.DB, group *models.Group) error {
	return tx.Save(group).Error
}

// Delete removes the group; memberships and invitations cascade in SQL.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Group{}, "id = ?", id).Error
}

// List returns a cursor page of groups prefiltered for the actor. The
// prefilter is wider than the exact policy predicate; the service applies the
// final filter in memory.
func (r *Repository) List(ctx context.Context, actor policy.Actor, filter ListFilter) ([]models.Group, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Group{}).
		Scopes(policy.GroupListScope(actor))

	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Namespace != nil {
		query = query.Where("namespace = ?", *filter.Namespace)
	}

	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) > (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var groups []models.Group
	err = query.
		Order("created_at, id").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// ActorMemberships returns the actor's membership rows keyed by group id for
// the provided page of groups.
func (r *Repository) ActorMemberships(ctx context.Context, actor policy.Actor, groupIDs []uuid.UUID) (map[string]*models.GroupMembership, error) {
	result := make(map[string]*models.GroupMembership)
	if actor.IsAnonymous() || len(groupIDs) == 0 {
		return result, nil
	}

	var rows []models.GroupMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id IN ?", actor.ID, groupIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		key := rows[i].GroupID.String()
		if existing, ok := result[key]; ok && existing.Status.IsEffective() {
			continue
		}
		result[key] = &rows[i]
	}
	return result, nil
}
