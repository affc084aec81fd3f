package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublish_DeliversToSubscribers(t *testing.T) {
	b := New()

	var got []Message
	b.Subscribe(TopicWatchlistChanged, func(m Message) {
		got = append(got, m)
	})

	b.Publish(TopicWatchlistChanged, Message{Source: "tab-1", UserID: "user-1", ItemID: "42"})

	assert.Len(t, got, 1)
	assert.Equal(t, "tab-1", got[0].Source)
	assert.Equal(t, "42", got[0].ItemID)
}

func TestPublish_TopicIsolation(t *testing.T) {
	b := New()

	var watchlist, drained int
	b.Subscribe(TopicWatchlistChanged, func(Message) { watchlist++ })
	b.Subscribe(TopicQueueDrained, func(Message) { drained++ })

	b.Publish(TopicWatchlistChanged, Message{Source: "tab-1"})

	assert.Equal(t, 1, watchlist)
	assert.Equal(t, 0, drained)
}

func TestPublish_NoSubscribersIsNoop(t *testing.T) {
	b := New()
	// Must not panic or buffer.
	b.Publish(TopicWatchlistChanged, Message{Source: "tab-1"})
}

func TestSubscribe_LateSubscriberMissesEarlierMessages(t *testing.T) {
	b := New()
	b.Publish(TopicWatchlistChanged, Message{Source: "tab-1"})

	var got int
	b.Subscribe(TopicWatchlistChanged, func(Message) { got++ })

	assert.Equal(t, 0, got, "no redelivery: late subscribers do a fresh store read instead")
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := New()

	var got int
	sub := b.Subscribe(TopicWatchlistChanged, func(Message) { got++ })

	b.Publish(TopicWatchlistChanged, Message{Source: "tab-1"})
	sub.Unsubscribe()
	b.Publish(TopicWatchlistChanged, Message{Source: "tab-1"})

	assert.Equal(t, 1, got)

	// Idempotent
	sub.Unsubscribe()
}

func TestPublish_SenderCanSkipOwnEcho(t *testing.T) {
	b := New()

	const self = "tab-1"
	var seen []string
	b.Subscribe(TopicWatchlistChanged, func(m Message) {
		if m.Source == self {
			return // loopback prevention
		}
		seen = append(seen, m.Source)
	})

	b.Publish(TopicWatchlistChanged, Message{Source: self})
	b.Publish(TopicWatchlistChanged, Message{Source: "tab-2"})

	assert.Equal(t, []string{"tab-2"}, seen)
}

func TestPublish_MultipleSubscribersEachGetOneCopy(t *testing.T) {
	b := New()

	counts := make([]int, 3)
	for i := range counts {
		i := i
		b.Subscribe(TopicWatchlistChanged, func(Message) { counts[i]++ })
	}

	b.Publish(TopicWatchlistChanged, Message{Source: "tab-1"})

	for i, c := range counts {
		assert.Equal(t, 1, c, "subscriber %d", i)
	}
}
