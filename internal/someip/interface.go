package someip

import "time"

// MessageHandler receives inbound SOME/IP messages for a registered
// (service, instance, method) tuple.
type MessageHandler func(msg *Message)

// AvailabilityHandler reports remote service availability transitions.
type AvailabilityHandler func(service ServiceID, instance InstanceID, available bool)

// SubscriptionHandler authorises inbound event subscriptions on the server
// path; it mirrors vsomeip's onSubscription callback shape and returns
// whether the subscription is accepted.
type SubscriptionHandler func(client ClientID, eventgroup EventgroupID, subscribed bool) bool

// SubscriptionStatusHandler reports the outcome of a subscription request
// issued by this handler as a client; status 0 indicates success.
type SubscriptionStatusHandler func(service ServiceID, instance InstanceID, eventgroup EventgroupID, event MethodID, status uint16)

// Interface is the external SomeIpInterface collaborator: wire encode/decode,
// socket I/O and service discovery live behind this boundary and are not
// reimplemented here.
type Interface interface {
	// OfferService advertises a service/instance as available to clients.
	OfferService(service ServiceID, instance InstanceID)
	// RequestService asks the runtime to notify us of a remote service's
	// availability.
	RequestService(service ServiceID, instance InstanceID)
	// OfferEvent advertises an eventgroup's events as available for
	// subscription.
	OfferEvent(service ServiceID, instance InstanceID, eventgroup EventgroupID, events []EventgroupID, eventType EventType, cyclic time.Duration, changeResetsTimer, updateOnChange bool, reliability ReliabilityType)
	// RequestEvent registers this handler's interest in a remote eventgroup
	// ahead of subscribing to it.
	RequestEvent(service ServiceID, instance InstanceID, event MethodID, eventgroups []EventgroupID, eventType EventType)
	// Subscribe issues a SOME/IP subscribe for the given eventgroup.
	Subscribe(service ServiceID, instance InstanceID, eventgroup EventgroupID)
	// Notify publishes an event payload to subscribed remote clients.
	Notify(service ServiceID, instance InstanceID, eventgroup EventgroupID, payload []byte)
	// Send dispatches a SOME/IP message (request or response) and, for
	// requests, assigns and returns the correlation RequestID.
	Send(msg *Message) RequestID
	// IsMethod reports whether a resource id names a method (as opposed to
	// an event/field).
	IsMethod(id MethodID) bool
	// RegisterMessageHandler wires inbound SOME/IP delivery for the given
	// addressing tuple to handler.
	RegisterMessageHandler(service ServiceID, instance InstanceID, method MethodID, handler MessageHandler)
	// RegisterAvailabilityHandler wires remote availability notifications.
	RegisterAvailabilityHandler(service ServiceID, instance InstanceID, handler AvailabilityHandler)
	// RegisterSubscriptionHandler wires inbound subscription requests
	// (server path).
	RegisterSubscriptionHandler(service ServiceID, instance InstanceID, eventgroup EventgroupID, handler SubscriptionHandler)
	// RegisterSubscriptionStatusHandler wires subscription acknowledgements
	// for a subscription this handler issued (client path).
	RegisterSubscriptionStatusHandler(service ServiceID, instance InstanceID, eventgroup EventgroupID, event MethodID, handler SubscriptionStatusHandler)
}
