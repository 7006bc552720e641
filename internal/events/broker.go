// Package events fans pipeline stage events out to live subscribers.
package events

import (
	"sync"

	"github.com/Farras8/cek-pohon-app/internal/model"
)

// TopicPipeline carries every stage transition of every upload.
const TopicPipeline = "pipeline"

// Broker delivers events to subscribers of a topic.
type Broker interface {
	Subscribe(topic string) chan model.StageEvent
	Unsubscribe(topic string, ch chan model.StageEvent)
	Publish(topic string, evt model.StageEvent)
}

// Memory is an in-process broker. Slow subscribers drop events rather than
// block the publisher.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan model.StageEvent]struct{} // topic -> set of channels
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[chan model.StageEvent]struct{}{}}
}

func (b *Memory) Subscribe(topic string) chan model.StageEvent {
	ch := make(chan model.StageEvent, 8)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan model.StageEvent]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Memory) Unsubscribe(topic string, ch chan model.StageEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

func (b *Memory) Publish(topic string, evt model.StageEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}
