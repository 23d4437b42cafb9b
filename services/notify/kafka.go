package notifysvc

import (
	"context"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/outbox"
)

// kafkaWriter is the subset of *kafka.Writer used by KafkaDispatcher.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes outbox events for downstream consumers (notification workers, analytics).
type KafkaDispatcher struct {
	writer kafkaWriter
	topics map[string]string // event kind: topic
}

var _ outbox.Dispatcher = (*KafkaDispatcher)(nil)

func NewKafkaDispatcher(conf core.KafkaConfig) *KafkaDispatcher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(conf.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaDispatcher{
		writer: writer,
		topics: map[string]string{outbox.KindGroupInvitation: conf.InvitationTopic},
	}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, e outbox.Event) error {
	topic, ok := d.topics[e.Kind]
	if !ok || topic == "" {
		return errors.Errorf("no topic for %s events", e.Kind)
	}
	err := d.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(e.ID),
		Value:   e.Payload,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(e.Kind)}},
	})
	if err != nil {
		return errors.Wrapf(err, "writing %s event to %s", e.Kind, topic)
	}
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
