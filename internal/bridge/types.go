// Package bridge implements the per-endpoint message dispatch engine: a
// priority-queued, single-consumer state machine serializing inbound SOME/IP
// events and outbound uProtocol messages through one worker, maintaining the
// correlation tables that tie asynchronous responses back to their
// originating requests.
package bridge

import (
	"fmt"

	"someipbridge/internal/someip"
	"someipbridge/internal/uprotocol"
)

// Kind enumerates the QItem variants the worker loop dispatches.
type Kind int

const (
	// KindOutbound carries a uMessage bound for the SOME/IP side.
	KindOutbound Kind = iota
	// KindInbound carries a SOME/IP message bound for the uProtocol side.
	KindInbound
	// KindInboundSubscription carries a subscription request/teardown
	// observed on the server path.
	KindInboundSubscription
	// KindInboundSubscriptionAck carries a subscription acknowledgement
	// observed on the client path.
	KindInboundSubscriptionAck
	// KindOfferUResource carries a uP resource the handler should expose to
	// SOME/IP clients.
	KindOfferUResource
	// KindStop is a no-op sentinel that lets the worker notice it has been
	// asked to quiesce.
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindOutbound:
		return "Outbound"
	case KindInbound:
		return "Inbound"
	case KindInboundSubscription:
		return "InboundSubscription"
	case KindInboundSubscriptionAck:
		return "InboundSubscriptionAck"
	case KindOfferUResource:
		return "OfferUResource"
	case KindStop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// SubscriptionStatus mirrors the source's subscriptionStatus payload shared
// by the InboundSubscription and InboundSubscriptionAck kinds.
type SubscriptionStatus struct {
	Eventgroup   someip.EventgroupID
	IsSubscribed bool
}

// QItem is the bridge's sum-type queue element: kind tags which single field
// below is populated, replacing the source's opaque shared pointer plus enum
// tag with typed variants and an exhaustive dispatch switch.
type QItem struct {
	Kind         Kind
	Outbound     *uprotocol.UMessage
	Inbound      *someip.Message
	Subscription *SubscriptionStatus
	Offer        *uprotocol.UUri
}

// detail renders a short, trace-friendly description of whichever variant
// is populated, for Recorder consumers that log a single string per event.
func (q QItem) detail() string {
	switch q.Kind {
	case KindOutbound:
		if q.Outbound != nil {
			return q.Outbound.Attributes.Type.String()
		}
	case KindInbound:
		if q.Inbound != nil {
			return q.Inbound.Type.String()
		}
	case KindInboundSubscription, KindInboundSubscriptionAck:
		if q.Subscription != nil {
			return fmt.Sprintf("eventgroup=0x%x subscribed=%t", uint16(q.Subscription.Eventgroup), q.Subscription.IsSubscribed)
		}
	case KindOfferUResource:
		if q.Offer != nil {
			return q.Offer.Resource.Name
		}
	}
	return ""
}
