package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/chat"
)

type messageRepository struct {
	db *DB
}

var _ chat.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, msg chat.Message, exec ...core.DBExecutor) (chat.Message, error) {
	q := `INSERT INTO messages (id, group_id, sender_id, sender_name, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ext(exec).ExecContext(ctx, q, msg.ID, msg.GroupID, msg.SenderID, msg.SenderName, msg.Content, msg.CreatedAt)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo *messageRepository) QueryMessages(ctx context.Context, groupID string, limit int, exec ...core.DBExecutor) ([]chat.Message, error) {
	q := `SELECT id, group_id, sender_id, sender_name, content, created_at FROM (
			SELECT * FROM messages WHERE group_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
		) latest ORDER BY created_at, id`

	msgs := make([]chat.Message, 0, limit)
	if err := sqlx.SelectContext(ctx, repo.db.ext(exec), &msgs, q, groupID, limit); err != nil {
		return nil, errors.Wrap(err, "selecting messages")
	}
	for i := range msgs {
		msgs[i].CreatedAt = msgs[i].CreatedAt.UTC()
	}
	return msgs, nil
}
