package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"community-chat/internal/models"
)

var ErrMemberNotFound = errors.New("member not found")

// MemberRepository reads the member directory.
type MemberRepository interface {
	ListActiveMembers(ctx context.Context) ([]models.Member, error)
	GetMember(ctx context.Context, memberID string) (models.Member, error)
}

// MemberRepo is a sqlx implementation of MemberRepository.
type MemberRepo struct {
	db *sqlx.DB
}

// NewMemberRepo constructs a MemberRepo.
func NewMemberRepo(db *sqlx.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

// ListActiveMembers returns members that are not deactivated.
func (r *MemberRepo) ListActiveMembers(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members, `SELECT id, display_name, photo_url, role, is_active FROM chat_members WHERE is_active = TRUE ORDER BY display_name ASC`)
	return members, err
}

// GetMember fetches a member regardless of the active flag.
func (r *MemberRepo) GetMember(ctx context.Context, memberID string) (models.Member, error) {
	var m models.Member
	err := r.db.GetContext(ctx, &m, `SELECT id, display_name, photo_url, role, is_active FROM chat_members WHERE id=$1`, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMemberNotFound
	}
	return m, err
}
