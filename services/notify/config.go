package notifysvc

import (
	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/outbox"
)

// FromConfig picks where outbox events go following conf.Outbox.Dispatcher: "email" (default), "kafka" or "both".
// The returned func releases the dispatcher's connections.
func FromConfig(conf *core.Config, email *EmailDispatcher) (outbox.Dispatcher, func() error) {
	switch conf.Outbox.Dispatcher {
	case "kafka":
		kd := NewKafkaDispatcher(conf.Kafka)
		return kd, kd.Close
	case "both":
		kd := NewKafkaDispatcher(conf.Kafka)
		return Fanout{{Name: "email", Dispatcher: email}, {Name: "kafka", Dispatcher: kd}}, kd.Close
	}
	return email, func() error { return nil }
}
