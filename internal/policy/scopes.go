package policy

import (
	"gorm.io/gorm"

	"github.com/davidmarceau/groupline-backend/pkg/db/models"
	"github.com/davidmarceau/groupline-backend/pkg/enums"
)

// GroupListScope prefilters group list queries in SQL. The prefilter is
// intentionally wider than the final predicate (allow_view contents cannot be
// matched portably in SQL), so callers run FilterGroups over the result.
func GroupListScope(actor Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if actor.IsPlatformAdmin() {
			return db
		}
		if actor.IsAnonymous() {
			return db.Where("visibility = ? OR CAST(allow_view AS TEXT) NOT IN (?, ?)", enums.GroupVisibilityPublic, "[]", "null")
		}
		return db.Where(
			"visibility = ? OR CAST(allow_view AS TEXT) NOT IN (?, ?) OR owner_id = ? OR id IN (?)",
			enums.GroupVisibilityPublic,
			"[]", "null",
			actor.ID,
			db.Session(&gorm.Session{NewDB: true}).
				Model(&models.GroupMembership{}).
				Select("group_id").
				Where("user_id = ? AND status = ?", actor.ID, enums.MembershipStatusApproved),
		)
	}
}

// FilterGroups applies the exact select predicate to a prefiltered page.
// membershipsByGroup holds the actor's own membership per group id.
func (e *Evaluator) FilterGroups(actor Actor, groups []models.Group, membershipsByGroup map[string]*models.GroupMembership) []models.Group {
	visible := make([]models.Group, 0, len(groups))
	for i := range groups {
		group := &groups[i]
		if e.CanSelectGroup(actor, group, membershipsByGroup[group.ID.String()]) {
			visible = append(visible, *group)
		}
	}
	return visible
}

// MembershipListScope restricts membership listings to rows the actor may see:
// their own rows plus entire groups they own or administer.
func MembershipListScope(actor Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if actor.IsPlatformAdmin() {
			return db
		}
		managed := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.GroupMembership{}).
			Select("group_id").
			Where("user_id = ? AND status = ? AND role IN (?, ?)",
				actor.ID, enums.MembershipStatusApproved, enums.MemberRoleOwner, enums.MemberRoleAdmin)
		owned := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Group{}).
			Select("id").
			Where("owner_id = ?", actor.ID)
		return db.Where("user_id = ? OR group_id IN (?) OR group_id IN (?)", actor.ID, managed, owned)
	}
}

// InvitationListScope restricts invitation listings to invitee, inviter, and
// managed groups.
func InvitationListScope(actor Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if actor.IsPlatformAdmin() {
			return db
		}
		managed := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.GroupMembership{}).
			Select("group_id").
			Where("user_id = ? AND status = ? AND role IN (?, ?)",
				actor.ID, enums.MembershipStatusApproved, enums.MemberRoleOwner, enums.MemberRoleAdmin)
		owned := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Group{}).
			Select("id").
			Where("owner_id = ?", actor.ID)
		return db.Where(
			"invited_by_id = ? OR invitee_user_id = ? OR group_id IN (?) OR group_id IN (?)",
			actor.ID, actor.ID, managed, owned,
		)
	}
}
