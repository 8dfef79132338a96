package someip

import (
	"sync"
	"sync/atomic"
	"time"
)

// Fake is a deterministic, in-memory Interface used by bridge tests. It
// records every call it receives and lets tests trigger the registered
// callbacks synchronously, the same granularity MockSomeIPHandler exposed
// for the original handler's unit tests.
type Fake struct {
	mu sync.Mutex

	nextRequestID uint32

	OfferedServices   []serviceInstance
	RequestedServices []serviceInstance
	OfferedEvents     []OfferEventCall
	RequestedEvents   []RequestEventCall
	Subscribed        []SubscribeCall
	Notified          []NotifyCall
	Sent              []*Message

	methods map[MethodID]bool

	messageHandlers            map[triple]MessageHandler
	availabilityHandlers       map[pair]AvailabilityHandler
	subscriptionHandlers       map[triple]SubscriptionHandler
	subscriptionStatusHandlers map[quad]SubscriptionStatusHandler
}

type serviceInstance struct {
	Service  ServiceID
	Instance InstanceID
}

// OfferEventCall records an OfferEvent invocation.
type OfferEventCall struct {
	Service    ServiceID
	Instance   InstanceID
	Eventgroup EventgroupID
	Events     []EventgroupID
}

// RequestEventCall records a RequestEvent invocation.
type RequestEventCall struct {
	Service     ServiceID
	Instance    InstanceID
	Event       MethodID
	Eventgroups []EventgroupID
}

// SubscribeCall records a Subscribe invocation.
type SubscribeCall struct {
	Service    ServiceID
	Instance   InstanceID
	Eventgroup EventgroupID
}

// NotifyCall records a Notify invocation.
type NotifyCall struct {
	Service    ServiceID
	Instance   InstanceID
	Eventgroup EventgroupID
	Payload    []byte
}

type pair struct {
	Service  ServiceID
	Instance InstanceID
}

type triple struct {
	Service    ServiceID
	Instance   InstanceID
	Eventgroup EventgroupID
}

type quad struct {
	Service    ServiceID
	Instance   InstanceID
	Eventgroup EventgroupID
	Event      MethodID
}

// NewFake constructs a ready-to-use Fake interface.
func NewFake() *Fake {
	return &Fake{
		methods:                    make(map[MethodID]bool),
		messageHandlers:            make(map[triple]MessageHandler),
		availabilityHandlers:       make(map[pair]AvailabilityHandler),
		subscriptionHandlers:       make(map[triple]SubscriptionHandler),
		subscriptionStatusHandlers: make(map[quad]SubscriptionStatusHandler),
	}
}

// MarkMethod flags a resource id as a method so IsMethod reports true for it.
func (f *Fake) MarkMethod(id MethodID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods[id] = true
}

// SetNextRequestID seeds the request-id counter; the next Send(Request) call
// assigns id+1.
func (f *Fake) SetNextRequestID(id RequestID) {
	atomic.StoreUint32(&f.nextRequestID, uint32(id))
}

func (f *Fake) OfferService(service ServiceID, instance InstanceID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OfferedServices = append(f.OfferedServices, serviceInstance{service, instance})
}

func (f *Fake) RequestService(service ServiceID, instance InstanceID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RequestedServices = append(f.RequestedServices, serviceInstance{service, instance})
}

func (f *Fake) OfferEvent(service ServiceID, instance InstanceID, eventgroup EventgroupID, events []EventgroupID, eventType EventType, cyclic time.Duration, changeResetsTimer, updateOnChange bool, reliability ReliabilityType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OfferedEvents = append(f.OfferedEvents, OfferEventCall{Service: service, Instance: instance, Eventgroup: eventgroup, Events: append([]EventgroupID(nil), events...)})
}

func (f *Fake) RequestEvent(service ServiceID, instance InstanceID, event MethodID, eventgroups []EventgroupID, eventType EventType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RequestedEvents = append(f.RequestedEvents, RequestEventCall{Service: service, Instance: instance, Event: event, Eventgroups: append([]EventgroupID(nil), eventgroups...)})
}

func (f *Fake) Subscribe(service ServiceID, instance InstanceID, eventgroup EventgroupID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Subscribed = append(f.Subscribed, SubscribeCall{Service: service, Instance: instance, Eventgroup: eventgroup})
}

func (f *Fake) Notify(service ServiceID, instance InstanceID, eventgroup EventgroupID, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notified = append(f.Notified, NotifyCall{Service: service, Instance: instance, Eventgroup: eventgroup, Payload: append([]byte(nil), payload...)})
}

func (f *Fake) Send(msg *Message) RequestID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.Type != MTResponse {
		//1.- Responses reuse the request's id; only requests mint a fresh one.
		if msg.RequestID == 0 {
			f.nextRequestID++
			msg.RequestID = RequestID(f.nextRequestID)
		}
	}
	f.Sent = append(f.Sent, msg)
	return msg.RequestID
}

func (f *Fake) IsMethod(id MethodID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.methods[id]
}

func (f *Fake) RegisterMessageHandler(service ServiceID, instance InstanceID, method MethodID, handler MessageHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageHandlers[triple{service, instance, EventgroupID(method)}] = handler
}

func (f *Fake) RegisterAvailabilityHandler(service ServiceID, instance InstanceID, handler AvailabilityHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availabilityHandlers[pair{service, instance}] = handler
}

func (f *Fake) RegisterSubscriptionHandler(service ServiceID, instance InstanceID, eventgroup EventgroupID, handler SubscriptionHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptionHandlers[triple{service, instance, eventgroup}] = handler
}

func (f *Fake) RegisterSubscriptionStatusHandler(service ServiceID, instance InstanceID, eventgroup EventgroupID, event MethodID, handler SubscriptionStatusHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptionStatusHandlers[quad{service, instance, eventgroup, event}] = handler
}

// FireMessage invokes the handler registered for (service, AnyInstance,
// AnyMethod), emulating inbound SOME/IP delivery. Handlers registered for an
// exact instance or method are not consulted.
func (f *Fake) FireMessage(service ServiceID, msg *Message) {
	f.mu.Lock()
	handler, ok := f.messageHandlers[triple{service, AnyInstance, EventgroupID(AnyMethod)}]
	f.mu.Unlock()
	if ok && handler != nil {
		handler(msg)
	}
}

// FireAvailability invokes the registered availability callback, if any.
func (f *Fake) FireAvailability(service ServiceID, instance InstanceID, available bool) {
	f.mu.Lock()
	handler, ok := f.availabilityHandlers[pair{service, instance}]
	f.mu.Unlock()
	if ok && handler != nil {
		handler(service, instance, available)
	}
}

// FireSubscriptionStatus invokes the registered subscription-status callback,
// if any, for the given eventgroup/event pair.
func (f *Fake) FireSubscriptionStatus(service ServiceID, instance InstanceID, eventgroup EventgroupID, event MethodID, status uint16) {
	f.mu.Lock()
	handler, ok := f.subscriptionStatusHandlers[quad{service, instance, eventgroup, event}]
	f.mu.Unlock()
	if ok && handler != nil {
		handler(service, instance, eventgroup, event, status)
	}
}

var _ Interface = (*Fake)(nil)
