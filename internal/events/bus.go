// Package events carries read-only change notifications from the core
// components to presentation. Delivery order is not guaranteed; every event
// carries a bus-wide sequence number so subscribers can drop stale ones.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	TopicSessionChanged  = "session.changed"
	TopicQueryTransition = "query.transition"
	TopicCatalogUpdated  = "catalog.updated"
	TopicWishlistChanged = "wishlist.changed"

	metadataSeq = "seq"
)

// Topics lists every topic the client publishes.
var Topics = []string{
	TopicSessionChanged,
	TopicQueryTransition,
	TopicCatalogUpdated,
	TopicWishlistChanged,
}

// Event is the envelope published on every topic.
type Event struct {
	Seq       uint64          `json:"seq"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type Bus struct {
	pubsub *gochannel.GoChannel
	seq    atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			NewLogger(),
		),
	}
}

// Publish wraps payload in an Event and publishes it on topic. Without
// subscribers the event is dropped.
func (b *Bus) Publish(topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	ev := Event{
		Seq:       b.seq.Add(1),
		Topic:     topic,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(metadataSeq, strconv.FormatUint(ev.Seq, 10))
	return b.pubsub.Publish(topic, msg)
}

// Subscribe returns the raw message stream for topic. Every message must be
// acked. The channel closes when ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// Decode unpacks a message published by Bus.
func Decode(msg *message.Message) (Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return ev, nil
}

// DecodePayload unpacks the event payload into dst.
func (e Event) DecodePayload(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}
