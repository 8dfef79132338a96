// Package someip models the addressing primitives and the external
// SomeIpInterface collaborator consumed by the bridge. Wire encoding, socket
// I/O and service discovery are out of scope; this package only defines the
// shapes a handler needs to drive them.
package someip

import "fmt"

// ServiceID identifies a SOME/IP service type.
type ServiceID uint16

// InstanceID identifies a deployment instance of a service.
type InstanceID uint16

// MethodID identifies an operation (method) on a service; for notification
// messages the method field is reused to carry the eventgroup id.
type MethodID uint16

// EventgroupID identifies a set of related events a client subscribes to.
type EventgroupID uint16

// ClientID identifies the remote SOME/IP client issuing a subscription.
type ClientID uint32

// RequestID is the SOME/IP-assigned correlation id for a request/response pair.
type RequestID uint32

const (
	// AnyInstance matches every instance when registering a message handler.
	AnyInstance InstanceID = 0xFFFF
	// AnyMethod matches every method when registering a message handler.
	AnyMethod MethodID = 0xFFFF
	// InstanceIDPerSpec is the fixed instance id the uProtocol SOME/IP profile
	// mandates; handler construction always normalises to this value,
	// regardless of what a caller requests.
	InstanceIDPerSpec InstanceID = 0x0001
	// MinSubscriberCount is the minimum subscriber count considered "has a
	// live subscription" by ResourceInformation.DoesSubscriptionExist.
	MinSubscriberCount = 1
)

// MessageType enumerates the inbound/outbound SOME/IP message kinds.
type MessageType int

const (
	// MTRequest is an inbound/outbound RPC invocation.
	MTRequest MessageType = iota
	// MTResponse is the reply to a previously sent/received Request.
	MTResponse
	// MTNotification is a fire-and-forget event delivery.
	MTNotification
)

func (t MessageType) String() string {
	switch t {
	case MTRequest:
		return "REQUEST"
	case MTResponse:
		return "RESPONSE"
	case MTNotification:
		return "NOTIFICATION"
	default:
		return "UNKNOWN"
	}
}

// EventType enumerates vsomeip event offer kinds; only ET_FIELD is exercised
// by this bridge since offerEvent/requestEvent are always called with it.
type EventType int

// ETField mirrors vsomeip::event_type_e::ET_FIELD.
const ETField EventType = 0

// ReliabilityType enumerates vsomeip transport reliability hints.
type ReliabilityType int

// RTUnknown mirrors vsomeip::reliability_type_e::RT_UNKNOWN, the value the
// source always passes when offering events.
const RTUnknown ReliabilityType = 0

// Message is the opaque SOME/IP wire message the bridge moves between the
// interface and the dispatch handlers.
type Message struct {
	Service   ServiceID
	Instance  InstanceID
	Method    MethodID
	RequestID RequestID
	Type      MessageType
	Payload   []byte
}

// Eventgroup returns the method field reinterpreted as an eventgroup id;
// SOME/IP notifications reuse the method field for this purpose.
func (m *Message) Eventgroup() EventgroupID {
	if m == nil {
		return 0
	}
	return EventgroupID(m.Method)
}

func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("service=0x%x instance=0x%x method=0x%x requestId=0x%x type=%s", m.Service, m.Instance, m.Method, m.RequestID, m.Type)
}
