package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pricing_server/core/domain"
)

// TestPublishCountsUnderConcurrency: concurrent publishers never lose a
// counter increment; every delivery attempt lands in sent or dropped.
func TestPublishCountsUnderConcurrency(t *testing.T) {
	a := NewSSEAdapter(zerolog.Nop())

	const subscribers = 3
	for i := 0; i < subscribers; i++ {
		a.Subscribe()
	}

	const (
		publishers = 8
		perPub     = 200
	)
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPub; j++ {
				ev := &domain.TaskEvent{
					Type:      domain.EventTaskUpdated,
					Seq:       int64(j),
					Timestamp: time.Now().UTC(),
				}
				if err := a.Publish(context.Background(), ev); err != nil {
					t.Errorf("Publish: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	m := a.GetMetrics()
	want := int64(publishers * perPub * subscribers)
	if got := m.MessagesSent + m.MessagesDropped; got != want {
		t.Errorf("sent(%d) + dropped(%d) = %d, want %d",
			m.MessagesSent, m.MessagesDropped, got, want)
	}
	if m.Connections != subscribers {
		t.Errorf("connections = %d, want %d", m.Connections, subscribers)
	}
}

// TestUnsubscribeClosesChannel verifies the subscription channel is closed
// and the connection count drops.
func TestUnsubscribeClosesChannel(t *testing.T) {
	a := NewSSEAdapter(zerolog.Nop())

	ch := a.Subscribe()
	a.Unsubscribe(ch)

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("channel delivered an event after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
	if n := a.ConnectedCount(); n != 0 {
		t.Errorf("connections = %d, want 0", n)
	}
}
