package event

import (
	"sync"
	"testing"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var received []Event
	bus.Subscribe("branch.created", func(e Event) {
		received = append(received, e)
	})

	bus.Publish(NewBranchCreatedEvent("proj-1", "feature/auth", "dev"))

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	evt, ok := received[0].(BranchCreatedEvent)
	if !ok {
		t.Fatalf("unexpected event type %T", received[0])
	}
	if evt.Branch != "feature/auth" || evt.Base != "dev" {
		t.Errorf("unexpected event payload: %+v", evt)
	}
	if evt.Timestamp().IsZero() {
		t.Error("expected non-zero timestamp")
	}
}

func TestPublish_OnlyMatchingType(t *testing.T) {
	bus := NewBus()

	var mergeCount, releaseCount int
	bus.Subscribe("merge.completed", func(Event) { mergeCount++ })
	bus.Subscribe("release.promoted", func(Event) { releaseCount++ })

	bus.Publish(NewMergeCompletedEvent("proj-1", "auth", "feature/auth", "dev", 3, false))

	if mergeCount != 1 {
		t.Errorf("merge handler called %d times, want 1", mergeCount)
	}
	if releaseCount != 0 {
		t.Errorf("release handler called %d times, want 0", releaseCount)
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()

	var all []string
	bus.SubscribeAll(func(e Event) { all = append(all, e.EventType()) })

	bus.Publish(NewReleaseCreatedEvent("proj-1", "1.2.0", "release/1.2.0"))
	bus.Publish(NewReleaseAbandonedEvent("proj-1", "1.2.0", true))

	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}
	if all[0] != "release.created" || all[1] != "release.abandoned" {
		t.Errorf("unexpected event order: %v", all)
	}
}

func TestSpecificHandlersBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "wildcard") })
	bus.Subscribe("refs.changed", func(Event) { order = append(order, "specific") })

	bus.Publish(NewRefsChangedEvent("proj-1"))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("unexpected dispatch order: %v", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	id := bus.Subscribe("refs.changed", func(Event) { count++ })

	bus.Publish(NewRefsChangedEvent("proj-1"))
	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe returned false for live subscription")
	}
	bus.Publish(NewRefsChangedEvent("proj-1"))

	if count != 1 {
		t.Errorf("handler called %d times, want 1", count)
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe returned true for removed subscription")
	}
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()

	called := false
	bus.Subscribe("refs.changed", func(Event) { panic("boom") })
	bus.Subscribe("refs.changed", func(Event) { called = true })

	bus.Publish(NewRefsChangedEvent("proj-1"))

	if !called {
		t.Error("second handler not called after first panicked")
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("refs.changed", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(NewRefsChangedEvent("proj-1"))
		}()
	}
	wg.Wait()

	if count != 10 {
		t.Errorf("handler called %d times, want 10", count)
	}
}

func TestSubscriptionCount(t *testing.T) {
	bus := NewBus()
	if bus.SubscriptionCount() != 0 {
		t.Error("new bus should have no subscriptions")
	}
	bus.Subscribe("a", func(Event) {})
	bus.SubscribeAll(func(Event) {})
	if got := bus.SubscriptionCount(); got != 2 {
		t.Errorf("SubscriptionCount() = %d, want 2", got)
	}
}
