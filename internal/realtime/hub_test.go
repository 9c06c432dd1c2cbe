package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

func TestPublishReachesTopicSubscribersOnly(t *testing.T) {
	hub := NewHub(nopLogger{})

	a := hub.subscribe("drive:a")
	b := hub.subscribe("drive:b")
	defer hub.unsubscribe("drive:a", a)
	defer hub.unsubscribe("drive:b", b)

	hub.Publish("drive:a", map[string]string{"type": "page.updated"})

	select {
	case msg := <-a.send:
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(msg, &decoded))
		assert.Equal(t, "page.updated", decoded["type"])
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive message")
	}

	select {
	case <-b.send:
		t.Fatal("message leaked across topics")
	default:
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub(nopLogger{})
	sub := hub.subscribe("drive:a")
	defer hub.unsubscribe("drive:a", sub)

	// Overfill the buffer; Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish("drive:a", map[string]int{"n": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestUnsubscribeRemovesEmptyTopics(t *testing.T) {
	hub := NewHub(nopLogger{})
	sub := hub.subscribe("drive:a")
	assert.Equal(t, 1, hub.SubscriberCount("drive:a"))

	hub.unsubscribe("drive:a", sub)
	assert.Equal(t, 0, hub.SubscriberCount("drive:a"))
}
