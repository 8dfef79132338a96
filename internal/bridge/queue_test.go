package bridge

import "testing"

// TestDrainOrderFollowsPriority verifies P4: given a sequence of enqueues
// across priority levels before the worker starts draining, dispatch order
// equals the stable sort of the sequence by descending priority, with
// same-priority items preserving enqueue order.
func TestDrainOrderFollowsPriority(t *testing.T) {
	q := NewPriorityQueue(3)

	q.Push(QItem{Kind: KindOfferUResource}, 0)
	q.Push(QItem{Kind: KindInbound}, 1)
	q.Push(QItem{Kind: KindOutbound}, 2)
	q.Push(QItem{Kind: KindInboundSubscription}, 0)
	q.Push(QItem{Kind: KindInboundSubscriptionAck}, 2)

	var order []Kind
	q.Drain(func(item QItem) { order = append(order, item.Kind) })

	want := []Kind{KindOutbound, KindInboundSubscriptionAck, KindInbound, KindOfferUResource, KindInboundSubscription}
	if len(order) != len(want) {
		t.Fatalf("expected %d dispatched items, got %d: %v", len(want), len(order), order)
	}
	for i, k := range want {
		if order[i] != k {
			t.Fatalf("position %d: expected %v, got %v (full order %v)", i, k, order[i], order)
		}
	}
}

func TestPushRejectsOutOfRangePriorityAndStoppedQueue(t *testing.T) {
	q := NewPriorityQueue(2)

	if q.Push(QItem{Kind: KindStop}, 2) {
		t.Fatal("expected push with out-of-range priority to be rejected")
	}
	if !q.Empty() {
		t.Fatal("rejected push must not land in the queue")
	}

	q.SetRunning(false)
	if q.Push(QItem{Kind: KindStop}, 0) {
		t.Fatal("expected push to a non-running queue to be rejected")
	}
}

func TestFlushDiscardsAllLevels(t *testing.T) {
	q := NewPriorityQueue(2)
	q.Push(QItem{Kind: KindOutbound}, 0)
	q.Push(QItem{Kind: KindInbound}, 1)

	q.Flush()

	if !q.Empty() {
		t.Fatal("expected queue to be empty after Flush")
	}
}

func TestWaitUntilNonEmptyReturnsWhenStopped(t *testing.T) {
	q := NewPriorityQueue(1)
	q.SetRunning(false)

	done := make(chan struct{})
	go func() {
		q.WaitUntilNonEmpty()
		close(done)
	}()
	<-done
}
