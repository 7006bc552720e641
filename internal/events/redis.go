package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Farras8/cek-pohon-app/internal/model"
)

// Redis implements Broker over Redis Pub/Sub so every API instance sees the
// stage events of an upload processed by any other instance.
type Redis struct {
	rdb    *redis.Client
	prefix string

	mu   sync.Mutex
	subs map[chan model.StageEvent]*redis.PubSub
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, prefix: "cekpohon:events:", subs: map[chan model.StageEvent]*redis.PubSub{}}
}

func (b *Redis) Subscribe(topic string) chan model.StageEvent {
	ch := make(chan model.StageEvent, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(topic))
	// wait for the subscription confirmation so no publish is missed
	_, _ = ps.Receive(ctx)
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt model.StageEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

// Unsubscribe closes the underlying PubSub; the channel is closed once the
// relay goroutine drains.
func (b *Redis) Unsubscribe(topic string, ch chan model.StageEvent) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *Redis) Publish(topic string, evt model.StageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	_ = b.rdb.Publish(ctx, b.chanName(topic), data).Err()
}

func (b *Redis) chanName(topic string) string { return b.prefix + topic }
