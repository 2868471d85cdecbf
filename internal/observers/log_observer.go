// Package observers subscribes to the event bus on behalf of presentation.
package observers

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/smartselect/shortlist/internal/events"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

// LogObserver logs every event on every topic. Extra handlers can be
// attached with Add before Start. Events older than the newest one already
// seen on a topic are acked and dropped.
type LogObserver struct {
	bus      *events.Bus
	handlers map[string][]Handler

	mu      sync.Mutex
	lastSeq map[string]uint64
	wg      sync.WaitGroup
}

func NewLogObserver(bus *events.Bus) *LogObserver {
	o := &LogObserver{
		bus:      bus,
		handlers: map[string][]Handler{},
		lastSeq:  map[string]uint64{},
	}
	for topic, h := range NewAllHandlers() {
		o.handlers[topic] = append(o.handlers[topic], h)
	}
	return o
}

func (o *LogObserver) Add(topic string, h Handler) {
	o.handlers[topic] = append(o.handlers[topic], h)
}

// Start subscribes to every topic. Consumers stop when ctx is done or the
// bus closes; Wait blocks until they have.
func (o *LogObserver) Start(ctx context.Context) error {
	for _, topic := range events.Topics {
		msgs, err := o.bus.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		o.wg.Add(1)
		go func(topic string, msgs <-chan *message.Message) {
			defer o.wg.Done()
			for msg := range msgs {
				o.process(ctx, topic, msg)
			}
		}(topic, msgs)
	}
	return nil
}

func (o *LogObserver) Wait() {
	o.wg.Wait()
}

func (o *LogObserver) process(ctx context.Context, topic string, msg *message.Message) {
	defer msg.Ack()

	ev, err := events.Decode(msg)
	if err != nil {
		logx.Warn().Err(err).Str("topic", topic).Msg("dropping undecodable event")
		return
	}

	o.mu.Lock()
	if ev.Seq <= o.lastSeq[topic] {
		o.mu.Unlock()
		logx.Debug().Str("topic", topic).Uint64("seq", ev.Seq).Msg("dropping out-of-order event")
		return
	}
	o.lastSeq[topic] = ev.Seq
	o.mu.Unlock()

	for _, h := range o.handlers[topic] {
		h(ctx, ev)
	}
}
