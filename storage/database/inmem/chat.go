package inmemdb

import (
	"context"

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

func (repo *messageRepository) CreateMessage(_ context.Context, msg chat.Message, exec ...core.DBExecutor) (chat.Message, error) {
	defer repo.db.lockWrite(exec)()
	repo.db.tables.messages = append(repo.db.tables.messages, msg)
	return msg, nil
}

func (repo *messageRepository) QueryMessages(_ context.Context, groupID string, limit int, _ ...core.DBExecutor) ([]chat.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	msgs := make([]chat.Message, 0)
	for _, m := range repo.db.tables.messages {
		if m.GroupID == groupID {
			msgs = append(msgs, m)
		}
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}
