package models

// Member roles that matter to the chat service.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

// Member is a directory entry eligible for mentions.
type Member struct {
	ID          string `db:"id" json:"id"`
	DisplayName string `db:"display_name" json:"display_name"`
	PhotoURL    string `db:"photo_url" json:"photo_url,omitempty"`
	Role        string `db:"role" json:"role"`
	IsActive    bool   `db:"is_active" json:"is_active"`
}

// CanModerate reports whether the role may soft-delete messages.
func CanModerate(role string) bool {
	return role == RoleAdmin || role == RoleModerator
}
