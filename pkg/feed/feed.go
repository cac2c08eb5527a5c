// Package feed fans orderbook events out to subscribers. Delivery is
// in-process and preserves production order per subscriber.
package feed

import (
	"github.com/luxfi/log"

	"github.com/apxr/marketsim/pkg/book"
)

// TopicOrderbookEvent is the only topic the simulator publishes on.
const TopicOrderbookEvent = "orderbook_event"

// Subscriber consumes orderbook events. Handlers are advisory: they must
// return promptly and must not call back into the book.
type Subscriber interface {
	OnOrderbookEvent(book.Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(book.Event)

func (f SubscriberFunc) OnOrderbookEvent(e book.Event) { f(e) }

// Feed is a single fan-out channel keyed by topic.
type Feed struct {
	subs   map[string][]Subscriber
	logger log.Logger
}

func New() *Feed {
	return &Feed{
		subs:   make(map[string][]Subscriber),
		logger: log.Root().New("module", "feed"),
	}
}

// Subscribe registers a subscriber on a topic. Not safe for use once
// publishing has started; the population is wired before the run.
func (f *Feed) Subscribe(topic string, s Subscriber) {
	f.subs[topic] = append(f.subs[topic], s)
}

// Publish delivers an event to every subscriber in registration order. A
// panicking subscriber is logged and skipped; it cannot stall the engine.
func (f *Feed) Publish(e book.Event) {
	for _, s := range f.subs[TopicOrderbookEvent] {
		f.deliver(s, e)
	}
}

func (f *Feed) deliver(s Subscriber, e book.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			f.logger.Warn("subscriber failed on event",
				"uid", e.UID,
				"type", e.Type.String(),
				"panic", rec)
		}
	}()
	s.OnOrderbookEvent(e)
}
