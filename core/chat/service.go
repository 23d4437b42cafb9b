package chat

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/group"
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message, exec ...core.DBExecutor) (Message, error)
		// QueryMessages returns the latest limit messages of a group in append order.
		QueryMessages(ctx context.Context, groupID string, limit int, exec ...core.DBExecutor) ([]Message, error)
	}

	// Broker fans out appended messages to the subscribers of a group.
	Broker interface {
		Publish(ctx context.Context, msg Message) error
		// Subscribe delivers the group's messages published after the call until ctx is done,
		// then closes the channel.
		Subscribe(ctx context.Context, groupID string) (<-chan Message, error)
	}

	Service struct {
		repo      Repository
		groupRepo group.Repository
		broker    Broker
		logger    core.Logger
	}
)

func NewService(repo Repository, groupRepo group.Repository, broker Broker, logger core.Logger) *Service {
	return &Service{repo: repo, groupRepo: groupRepo, broker: broker, logger: logger}
}

// canChat allows group members and the group's mentor.
func canChat(a group.Access) bool { return a == group.AccessMember || a == group.AccessOwner }

// Post appends a message to the group's channel and publishes it.
// A publishing failure is logged; the message stays stored.
func (svc *Service) Post(ctx context.Context, groupID, content string) (Message, error) {
	content = core.CleanString(content)
	switch {
	case content == "":
		return Message{}, core.NewValidationError(nil, core.FieldError{Field: "content", Error: "this field is required"})
	case utf8.RuneCountInString(content) > MaxContentLen:
		return Message{}, core.NewValidationError(nil, core.FieldError{
			Field: "content",
			Error: fmt.Sprintf("ensure this field has no more than %d characters", MaxContentLen),
		})
	}

	_, sender, _, err := group.Authorize(ctx, svc.groupRepo, groupID, canChat)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:         uuid.New().String(),
		GroupID:    groupID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Content:    content,
		CreatedAt:  core.NowFunc(),
	}
	if msg, err = svc.repo.CreateMessage(ctx, msg); err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	if err = svc.broker.Publish(ctx, msg); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing message %s: %v", msg.ID, err), sender)
	}
	return msg, nil
}

// History returns the group's latest messages, oldest first.
func (svc *Service) History(ctx context.Context, groupID string, limit int) ([]Message, error) {
	if _, _, _, err := group.Authorize(ctx, svc.groupRepo, groupID, canChat); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	return svc.repo.QueryMessages(ctx, groupID, limit)
}

// Subscribe streams the group's new messages until ctx is done.
func (svc *Service) Subscribe(ctx context.Context, groupID string) (<-chan Message, error) {
	if _, _, _, err := group.Authorize(ctx, svc.groupRepo, groupID, canChat); err != nil {
		return nil, err
	}
	ch, err := svc.broker.Subscribe(ctx, groupID)
	if err != nil {
		return nil, core.Upstream(err, "subscribing to group messages")
	}
	return ch, nil
}
