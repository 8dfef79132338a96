package bridge

import (
	"testing"

	"someipbridge/internal/someip"
	"someipbridge/internal/uprotocol"
)

func TestOfferResourceDuplicateIsSilentNoOp(t *testing.T) {
	c := NewCorrelationTables()
	first := c.OfferResource(0x1, uprotocol.UResource{Name: "first"})
	second := c.OfferResource(0x1, uprotocol.UResource{Name: "second"})

	if first != second {
		t.Fatal("expected duplicate OfferResource to return the original entry")
	}
	if got := first.Resource().Name; got != "first" {
		t.Fatalf("expected the first resource to be retained, got %q", got)
	}
}

func TestEnsureRemoteSubscriptionBumpsCountOnDuplicate(t *testing.T) {
	c := NewCorrelationTables()
	info, existed := c.EnsureRemoteSubscription(0x20, uprotocol.UResource{ID: 0x20})
	if existed {
		t.Fatal("expected the first subscription to report existed=false")
	}
	if info.SubscriberCount() != 1 {
		t.Fatalf("expected subscriber count 1 after first subscribe, got %d", info.SubscriberCount())
	}

	info2, existed2 := c.EnsureRemoteSubscription(0x20, uprotocol.UResource{ID: 0x20})
	if !existed2 {
		t.Fatal("expected the second subscription to report existed=true")
	}
	if info2.SubscriberCount() != 2 {
		t.Fatalf("expected subscriber count 2 after second subscribe, got %d", info2.SubscriberCount())
	}
}

func TestSubscriberCountNeverGoesNegative(t *testing.T) {
	r := NewResourceInformation(uprotocol.UResource{})
	r.RemoveSubscriber()
	r.RemoveSubscriber()
	if r.SubscriberCount() != 0 {
		t.Fatalf("expected subscriber count to floor at 0, got %d", r.SubscriberCount())
	}
	if r.DoesSubscriptionExist() {
		t.Fatal("expected DoesSubscriptionExist to be false with zero subscribers")
	}

	r.AddSubscriber()
	if !r.DoesSubscriptionExist() {
		t.Fatal("expected DoesSubscriptionExist to be true once a subscriber is added")
	}
}

// TestUUIDToSomeipRequestConservation exercises P2: one insert per routed
// inbound request, exactly one erase per matching outbound response.
func TestUUIDToSomeipRequestConservation(t *testing.T) {
	c := NewCorrelationTables()
	msg := &someip.Message{RequestID: 7}
	c.PutUUIDToSomeipRequest("abc", msg)

	if got, ok := c.TakeUUIDToSomeipRequest("abc"); !ok || got != msg {
		t.Fatal("expected the stored request to be returned and removed")
	}
	if _, ok := c.TakeUUIDToSomeipRequest("abc"); ok {
		t.Fatal("expected the entry to be gone after the first Take")
	}
}

// TestSomeipRequestToUTransportConservation exercises P1: one insert per sent
// outbound request, exactly one erase per matching inbound response.
func TestSomeipRequestToUTransportConservation(t *testing.T) {
	c := NewCorrelationTables()
	uMsg := &uprotocol.UMessage{}
	c.PutSomeipRequestToUTransportRequest(someip.RequestID(42), uMsg)

	sizes := c.Sizes()
	if sizes.SomeipReqIDToUTransportRequest != 1 {
		t.Fatalf("expected one pending outbound request, got %d", sizes.SomeipReqIDToUTransportRequest)
	}

	if got, ok := c.TakeSomeipRequestToUTransportRequest(someip.RequestID(42)); !ok || got != uMsg {
		t.Fatal("expected the stored uMessage to be returned and removed")
	}
	if sizes := c.Sizes(); sizes.SomeipReqIDToUTransportRequest != 0 {
		t.Fatalf("expected the table to be empty after Take, got %d", sizes.SomeipReqIDToUTransportRequest)
	}
}

func TestRemoveRemoteSubscriberErasesAtZero(t *testing.T) {
	c := NewCorrelationTables()
	c.EnsureRemoteSubscription(0x5, uprotocol.UResource{})
	c.RemoveRemoteSubscriber(0x5)

	if _, ok := c.RemoteSubscription(0x5); ok {
		t.Fatal("expected the subscription entry to be erased once its count reaches zero")
	}
}
