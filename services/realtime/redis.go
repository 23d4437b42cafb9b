package realtimesvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/chat"
)

func NewRedisClient(conf core.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})
}

// RedisBroker fans chat messages out through redis pub/sub, one channel per group.
type RedisBroker struct {
	rdb    *redis.Client
	logger core.Logger
}

var _ chat.Broker = (*RedisBroker)(nil)

func NewRedisBroker(rdb *redis.Client, logger core.Logger) *RedisBroker {
	return &RedisBroker{rdb: rdb, logger: logger}
}

func channel(groupID string) string { return "trackit:groups:" + groupID + ":messages" }

func (b *RedisBroker) Publish(ctx context.Context, msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}
	if err = b.rdb.Publish(ctx, channel(msg.GroupID), data).Err(); err != nil {
		return errors.Wrap(err, "publishing message")
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, groupID string) (<-chan chat.Message, error) {
	ps := b.rdb.Subscribe(ctx, channel(groupID))
	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "subscribing")
	}

	out := make(chan chat.Message, subscriberBuffer)
	go func() {
		defer close(out)
		//goland:noinspection GoUnhandledErrorResult
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				var msg chat.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.logger.Warn(fmt.Sprintf("decoding message on %s: %v", m.Channel, err))
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
