package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"community-chat/internal/models"
)

var ErrGroupNotFound = errors.New("group not found")

const groupColumns = `id, name_en, name_ar, name_ur, description_en, description_ar, description_ur,
        icon, color, member_count, created_by, created_at, is_default`

// GroupRepository abstracts group persistence.
type GroupRepository interface {
	ListGroups(ctx context.Context) ([]models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// ListGroups returns every group ordered by English name.
func (r *GroupRepo) ListGroups(ctx context.Context) ([]models.Group, error) {
	var rows []models.GroupRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+groupColumns+` FROM chat_groups ORDER BY name_en ASC`); err != nil {
		return nil, err
	}
	groups := make([]models.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, row.Group())
	}
	return groups, nil
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	var row models.GroupRow
	err := r.db.GetContext(ctx, &row, `SELECT `+groupColumns+` FROM chat_groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}
	return row.Group(), nil
}
