package bridge

import (
	"someipbridge/internal/someip"
	"someipbridge/internal/uprotocol"
)

// ResourceInformation wraps a uP UResource with a subscriber count. It is the
// table value shared by offeredResources and subscriptionsForRemoteServices.
type ResourceInformation struct {
	resource    uprotocol.UResource
	subscribers uint16
}

// NewResourceInformation constructs a ResourceInformation for the resource,
// with zero subscribers.
func NewResourceInformation(resource uprotocol.UResource) *ResourceInformation {
	return &ResourceInformation{resource: resource}
}

// Resource returns the wrapped UResource.
func (r *ResourceInformation) Resource() uprotocol.UResource {
	if r == nil {
		return uprotocol.UResource{}
	}
	return r.resource
}

// AddSubscriber increments the subscriber count.
func (r *ResourceInformation) AddSubscriber() {
	if r == nil {
		return
	}
	r.subscribers++
}

// RemoveSubscriber decrements the subscriber count, floored at zero.
func (r *ResourceInformation) RemoveSubscriber() {
	if r == nil || r.subscribers == 0 {
		return
	}
	r.subscribers--
}

// SubscriberCount reports the current subscriber count.
func (r *ResourceInformation) SubscriberCount() uint16 {
	if r == nil {
		return 0
	}
	return r.subscribers
}

// DoesSubscriptionExist reports whether at least MinSubscriberCount
// subscribers are registered.
func (r *ResourceInformation) DoesSubscriptionExist() bool {
	if r == nil {
		return false
	}
	return r.subscribers >= someip.MinSubscriberCount
}

// CorrelationTables owns the four correlation maps described in the data
// model. Every operation is documented as consumer-exclusive: the worker
// goroutine is the only caller, so no internal locking is needed (table
// mutation is serialized purely by single-threaded access, matching
// invariant P5).
type CorrelationTables struct {
	offeredResources               map[uint32]*ResourceInformation
	subscriptionsForRemoteServices map[someip.EventgroupID]*ResourceInformation
	uuidToSomeipRequest             map[string]*someip.Message
	someipReqIDToUTransportRequest  map[someip.RequestID]*uprotocol.UMessage
}

// NewCorrelationTables constructs an empty set of correlation tables.
func NewCorrelationTables() *CorrelationTables {
	return &CorrelationTables{
		offeredResources:               make(map[uint32]*ResourceInformation),
		subscriptionsForRemoteServices: make(map[someip.EventgroupID]*ResourceInformation),
		uuidToSomeipRequest:            make(map[string]*someip.Message),
		someipReqIDToUTransportRequest: make(map[someip.RequestID]*uprotocol.UMessage),
	}
}

// OfferResource inserts resourceId -> info, as a server-side offered
// resource. A duplicate key is a silent no-op retaining the first entry.
func (c *CorrelationTables) OfferResource(resourceID uint32, resource uprotocol.UResource) *ResourceInformation {
	if existing, ok := c.offeredResources[resourceID]; ok {
		return existing
	}
	info := NewResourceInformation(resource)
	c.offeredResources[resourceID] = info
	return info
}

// OfferedResource looks up an offered resource by id.
func (c *CorrelationTables) OfferedResource(resourceID uint32) (*ResourceInformation, bool) {
	info, ok := c.offeredResources[resourceID]
	return info, ok
}

// EnsureRemoteSubscription inserts a new subscriptionsForRemoteServices entry
// if absent (adding one subscriber) or bumps the subscriber count of an
// existing entry. It reports whether the entry already existed, so callers
// can branch between "new subscribe" and "act-on-behalf" flows.
func (c *CorrelationTables) EnsureRemoteSubscription(eventgroup someip.EventgroupID, resource uprotocol.UResource) (info *ResourceInformation, existed bool) {
	if existing, ok := c.subscriptionsForRemoteServices[eventgroup]; ok {
		existing.AddSubscriber()
		return existing, true
	}
	info = NewResourceInformation(resource)
	info.AddSubscriber()
	c.subscriptionsForRemoteServices[eventgroup] = info
	return info, false
}

// RemoteSubscription looks up a remote subscription by eventgroup.
func (c *CorrelationTables) RemoteSubscription(eventgroup someip.EventgroupID) (*ResourceInformation, bool) {
	info, ok := c.subscriptionsForRemoteServices[eventgroup]
	return info, ok
}

// RemoveRemoteSubscriber decrements the subscriber count for eventgroup and
// erases the entry entirely once it reaches zero.
func (c *CorrelationTables) RemoveRemoteSubscriber(eventgroup someip.EventgroupID) {
	info, ok := c.subscriptionsForRemoteServices[eventgroup]
	if !ok {
		return
	}
	info.RemoveSubscriber()
	if info.SubscriberCount() == 0 {
		delete(c.subscriptionsForRemoteServices, eventgroup)
	}
}

// PutUUIDToSomeipRequest records an inbound SOME/IP request awaiting our
// response, keyed by the uP request's UUID.
func (c *CorrelationTables) PutUUIDToSomeipRequest(uuid string, msg *someip.Message) {
	c.uuidToSomeipRequest[uuid] = msg
}

// TakeUUIDToSomeipRequest looks up and removes the stored SOME/IP request for
// uuid, reporting whether it was present.
func (c *CorrelationTables) TakeUUIDToSomeipRequest(uuid string) (*someip.Message, bool) {
	msg, ok := c.uuidToSomeipRequest[uuid]
	if ok {
		delete(c.uuidToSomeipRequest, uuid)
	}
	return msg, ok
}

// PutSomeipRequestToUTransportRequest records an outbound SOME/IP request
// awaiting a remote response, keyed by the assigned SOME/IP request id.
func (c *CorrelationTables) PutSomeipRequestToUTransportRequest(requestID someip.RequestID, uMsg *uprotocol.UMessage) {
	c.someipReqIDToUTransportRequest[requestID] = uMsg
}

// TakeSomeipRequestToUTransportRequest looks up and removes the stored uP
// request for requestID, reporting whether it was present.
func (c *CorrelationTables) TakeSomeipRequestToUTransportRequest(requestID someip.RequestID) (*uprotocol.UMessage, bool) {
	uMsg, ok := c.someipReqIDToUTransportRequest[requestID]
	if ok {
		delete(c.someipReqIDToUTransportRequest, requestID)
	}
	return uMsg, ok
}

// Sizes reports the current size of every table, used by the handler's
// metrics surface and by the dispatch trace writer's periodic snapshots.
type Sizes struct {
	OfferedResources               int
	SubscriptionsForRemoteServices int
	UUIDToSomeipRequest             int
	SomeipReqIDToUTransportRequest  int
}

// Sizes reports the current cardinality of every correlation table.
func (c *CorrelationTables) Sizes() Sizes {
	return Sizes{
		OfferedResources:               len(c.offeredResources),
		SubscriptionsForRemoteServices: len(c.subscriptionsForRemoteServices),
		UUIDToSomeipRequest:            len(c.uuidToSomeipRequest),
		SomeipReqIDToUTransportRequest: len(c.someipReqIDToUTransportRequest),
	}
}
