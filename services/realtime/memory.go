package realtimesvc

import (
	"context"
	"sync"

	"github.com/trezcool/trackit/core/chat"
)

const subscriberBuffer = 64

// MemoryBroker fans messages out in process.
// Slow subscribers lose messages once their buffer is full.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[chan chat.Message]struct{}
}

var _ chat.Broker = (*MemoryBroker)(nil)

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[chan chat.Message]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, msg chat.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[msg.GroupID] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, groupID string) (<-chan chat.Message, error) {
	ch := make(chan chat.Message, subscriberBuffer)
	b.mu.Lock()
	if b.subs[groupID] == nil {
		b.subs[groupID] = make(map[chan chat.Message]struct{})
	}
	b.subs[groupID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[groupID], ch)
		if len(b.subs[groupID]) == 0 {
			delete(b.subs, groupID)
		}
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers returns the number of live subscriptions to groupID.
func (b *MemoryBroker) Subscribers(groupID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[groupID])
}
