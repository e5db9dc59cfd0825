// Package bus fans session notifications out to any number of subscribers.
package bus

import (
	"reflect"
	"sync"

	"github.com/cskr/pubsub"

	logs "github.com/danmuck/wxdash/internal/logging"
)

const (
	TopicStations   = "stations"
	TopicWeather    = "weather"
	TopicDeleted    = "deleted"
	TopicConnStatus = "conn.status"
)

// AllTopics lists every topic the session publishes.
var AllTopics = []string{TopicStations, TopicWeather, TopicDeleted, TopicConnStatus}

const defaultCapacity = 128

// Event is what subscribers receive: the payload tagged with its topic.
type Event struct {
	Topic   string
	Payload any
}

type Subscription chan any

type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topics ...string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

// PubSubBus never blocks publishers: a subscriber whose channel is full
// misses the event.
type PubSubBus struct {
	ps *pubsub.PubSub

	mu     sync.RWMutex
	closed bool
}

func New() *PubSubBus {
	return NewWithCapacity(defaultCapacity)
}

// NewWithCapacity sets the per-subscriber channel depth.
func NewWithCapacity(capacity int) *PubSubBus {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &PubSubBus{ps: pubsub.New(capacity)}
}

func (b *PubSubBus) Publish(topic string, msg any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	logs.Debugf("bus.Publish topic=%s payload_type=%s", topic, payloadType(msg))
	b.ps.TryPub(Event{Topic: topic, Payload: msg}, topic)
}

func (b *PubSubBus) Subscribe(topics ...string) Subscription {
	if len(topics) == 0 {
		topics = AllTopics
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		ch := make(Subscription)
		close(ch)
		return ch
	}
	ch := b.ps.Sub(topics...)
	logs.Debugf("bus.Subscribe topics=%v", topics)
	return ch
}

// Unsubscribe with no topics drops ch entirely. Callers keep draining ch
// until it closes.
func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		logs.Debugf("bus.Unsubscribe mode=all")
		return
	}
	b.ps.Unsub(ch, topics...)
	logs.Debugf("bus.Unsubscribe topics=%v", topics)
}

// Close shuts the bus down. Later publishes are dropped.
func (b *PubSubBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.ps.Shutdown()
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
