package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"community-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, group_id, user_id, display_name, body, text_direction, kind,
        is_deleted, deleted_by, reply_to, mentions, reactions, created_at`

// GroupMessageRepository defines interactions for group messages.
type GroupMessageRepository interface {
	CreateGroupMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListRecentGroupMessages(ctx context.Context, groupID string, limit int) ([]models.Message, error)
	GetGroupMessage(ctx context.Context, messageID string) (models.Message, error)
	ReplaceReactions(ctx context.Context, messageID string, reactions models.Reactions) error
	SoftDelete(ctx context.Context, messageID string, moderatorID string) error
}

// GroupMessageRepo is a sqlx-backed implementation.
type GroupMessageRepo struct {
	db *sqlx.DB
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

type messageRow struct {
	ID            string           `db:"id"`
	GroupID       string           `db:"group_id"`
	UserID        string           `db:"user_id"`
	DisplayName   string           `db:"display_name"`
	Body          string           `db:"body"`
	TextDirection string           `db:"text_direction"`
	Kind          string           `db:"kind"`
	IsDeleted     bool             `db:"is_deleted"`
	DeletedBy     string           `db:"deleted_by"`
	ReplyTo       []byte           `db:"reply_to"`
	Mentions      []byte           `db:"mentions"`
	Reactions     models.Reactions `db:"reactions"`
	CreatedAt     time.Time        `db:"created_at"`
}

func (r messageRow) message() (models.Message, error) {
	msg := models.Message{
		ID:            r.ID,
		GroupID:       r.GroupID,
		UserID:        r.UserID,
		DisplayName:   r.DisplayName,
		Body:          r.Body,
		TextDirection: models.TextDirection(r.TextDirection),
		Kind:          models.MessageKind(r.Kind),
		IsDeleted:     r.IsDeleted,
		DeletedBy:     r.DeletedBy,
		Mentions:      []string{},
		Reactions:     r.Reactions,
		CreatedAt:     r.CreatedAt,
	}
	if msg.Reactions == nil {
		msg.Reactions = models.Reactions{}
	}
	if len(r.Mentions) > 0 {
		if err := json.Unmarshal(r.Mentions, &msg.Mentions); err != nil {
			return models.Message{}, fmt.Errorf("decode mentions of %s: %w", r.ID, err)
		}
	}
	if len(r.ReplyTo) > 0 && string(r.ReplyTo) != "null" {
		var ref models.ReplyRef
		if err := json.Unmarshal(r.ReplyTo, &ref); err != nil {
			return models.Message{}, fmt.Errorf("decode reply_to of %s: %w", r.ID, err)
		}
		msg.ReplyTo = &ref
	}
	return msg, nil
}

func toMessages(rows []messageRow) ([]models.Message, error) {
	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		m, err := row.message()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// CreateGroupMessage persists a message. The id is assigned here and the
// timestamp by the database.
func (r *GroupMessageRepo) CreateGroupMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	mentions := msg.Mentions
	if mentions == nil {
		mentions = []string{}
	}
	mentionsJSON, err := json.Marshal(mentions)
	if err != nil {
		return models.Message{}, err
	}
	var replyArg any
	if msg.ReplyTo != nil {
		raw, err := json.Marshal(msg.ReplyTo)
		if err != nil {
			return models.Message{}, err
		}
		replyArg = string(raw)
	}

	var row messageRow
	err = r.db.QueryRowxContext(ctx, `INSERT INTO chat_messages (id, group_id, user_id, display_name, body, text_direction, kind, reply_to, mentions, reactions)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING `+messageColumns,
		uuid.NewString(), msg.GroupID, msg.UserID, msg.DisplayName, msg.Body, string(msg.TextDirection), string(msg.Kind),
		replyArg, string(mentionsJSON), msg.Reactions).StructScan(&row)
	if err != nil {
		return models.Message{}, err
	}
	return row.message()
}

// ListRecentGroupMessages returns the newest limit messages of a group in
// ascending creation order. Soft-deleted messages keep their position.
func (r *GroupMessageRepo) ListRecentGroupMessages(ctx context.Context, groupID string, limit int) ([]models.Message, error) {
	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+messageColumns+` FROM (
            SELECT `+messageColumns+` FROM chat_messages WHERE group_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2
        ) recent ORDER BY created_at ASC, id ASC`, groupID, limit)
	if err != nil {
		return nil, err
	}
	return toMessages(rows)
}

// GetGroupMessage fetches a single message.
func (r *GroupMessageRepo) GetGroupMessage(ctx context.Context, messageID string) (models.Message, error) {
	var row messageRow
	err := r.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM chat_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return row.message()
}

// ReplaceReactions overwrites the whole reaction map of a message.
func (r *GroupMessageRepo) ReplaceReactions(ctx context.Context, messageID string, reactions models.Reactions) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_messages SET reactions = $2 WHERE id=$1`, messageID, reactions)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SoftDelete flags a message as removed by a moderator.
func (r *GroupMessageRepo) SoftDelete(ctx context.Context, messageID string, moderatorID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_messages SET is_deleted = TRUE, deleted_by = $2 WHERE id=$1`, messageID, moderatorID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
