package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lockdrop/core/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testPayload struct{ evt *types.Event }

func (p testPayload) EventType() string    { return p.evt.Type }
func (p testPayload) Event() *types.Event { return p.evt }

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

func TestHubDeliversCopies(t *testing.T) {
	hub := NewHub()
	first, cancelFirst := hub.Subscribe(4)
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe(4)
	defer cancelSecond()

	evt := &types.Event{Type: "lockdrop.deposited", Attributes: map[string]string{"amount": "100"}}
	hub.Emit(testPayload{evt: evt})
	hub.Emit(bareEvent{})

	got := <-first
	require.Equal(t, "lockdrop.deposited", got.Type)
	got.Attributes["amount"] = "0"
	other := <-second
	require.Equal(t, "100", other.Attributes["amount"])
	require.Equal(t, "100", evt.Attributes["amount"])
	require.Len(t, first, 0)
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Emit(testPayload{evt: &types.Event{Type: "a"}})
	hub.Emit(testPayload{evt: &types.Event{Type: "b"}})

	require.Equal(t, uint64(1), hub.Dropped())
	require.Equal(t, "a", (<-ch).Type)
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(0)
	require.Equal(t, 1, hub.Subscribers())
	cancel()
	cancel()
	require.Zero(t, hub.Subscribers())
	_, ok := <-ch
	require.False(t, ok)
	hub.Emit(testPayload{evt: &types.Event{Type: "a"}})
}

func TestHubConcurrentSubscribers(t *testing.T) {
	hub := NewHub()
	const subscribers = 8
	var (
		ready sync.WaitGroup
		done  sync.WaitGroup
	)
	counts := make([]int, subscribers)
	for i := 0; i < subscribers; i++ {
		ch, cancel := hub.Subscribe(16)
		ready.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			ready.Done()
			for evt := range ch {
				if evt.Type == "stop" {
					cancel()
					continue
				}
				counts[i]++
			}
		}(i)
	}
	ready.Wait()
	for i := 0; i < 10; i++ {
		hub.Emit(testPayload{evt: &types.Event{Type: "tick"}})
	}
	hub.Emit(testPayload{evt: &types.Event{Type: "stop"}})
	done.Wait()

	require.Zero(t, hub.Subscribers())
	for _, n := range counts {
		require.Equal(t, 10, n)
	}
}
