package bridge

import (
	"sync"
	"sync/atomic"

	"someipbridge/internal/logging"
	"someipbridge/internal/router"
	"someipbridge/internal/someip"
	"someipbridge/internal/uprotocol"
)

// Role distinguishes the client half of a handler (consumes a remote
// service) from the server half (offers a local one). A single deployment
// typically runs one handler per role per service.
type Role int

const (
	// RoleClient requests a remote service and waits on its availability
	// latch before issuing requests.
	RoleClient Role = iota
	// RoleServer offers a local service and its resources to SOME/IP
	// clients.
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Identity names the uProtocol entity and SOME/IP service/instance a handler
// bridges, plus which half of the conversation it plays.
type Identity struct {
	Entity    uprotocol.UEntity
	Authority uprotocol.UAuthority
	Service   someip.ServiceID
	Instance  someip.InstanceID
	Role      Role
}

// DefaultPriorityLevels is the number of FIFOs a handler's queue carries when
// callers do not override it.
const DefaultPriorityLevels = 3

// PriorityDefault is the priority level used by every producer method below.
// The source never varies the priority argument at any post-to-queue call
// site; every QItem enters at the same level regardless of kind.
const PriorityDefault = 0

// Handler is the per-service dispatch engine: a single worker goroutine
// drains a priority queue of translated SOME/IP and uProtocol events,
// consulting and mutating the correlation tables and availability latch as
// it goes. All producer methods are safe to call from any goroutine; only
// the worker goroutine touches tables, latch mutation aside.
type Handler struct {
	identity  Identity
	iface     someip.Interface
	router    router.Router
	queue     *PriorityQueue
	latch     *AvailabilityLatch
	tables    *CorrelationTables
	scheduler Scheduler
	metrics   *DispatchMetrics
	log       *logging.Logger
	recorder  Recorder

	// offeredResourcesByID is consumer-exclusive, same as the correlation
	// tables: only the worker goroutine reads or writes it.
	offeredResourcesByID map[uint32]uprotocol.UResource

	workerStarted atomic.Bool
	quitOnce      sync.Once
}

// NewHandler constructs a Handler and performs the construction-time
// registration the source's constructor does: the instance id is always
// normalised to someip.InstanceIDPerSpec regardless of what identity.Instance
// requests, a client only registers its availability handler and requests
// the remote service once the router reports state registration, and a
// server immediately offers its service.
func NewHandler(identity Identity, iface someip.Interface, rt router.Router, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewTestLogger()
	}
	identity.Instance = someip.InstanceIDPerSpec

	h := &Handler{
		identity:             identity,
		iface:                iface,
		router:               rt,
		queue:                NewPriorityQueue(DefaultPriorityLevels),
		latch:                NewAvailabilityLatch(),
		tables:               NewCorrelationTables(),
		scheduler:            GoScheduler{},
		metrics:              NewDispatchMetrics(),
		log:                  log.With(logging.String("component", "bridge_handler"), logging.String("role", identity.Role.String())),
		offeredResourcesByID: make(map[uint32]uprotocol.UResource),
	}

	switch identity.Role {
	case RoleServer:
		h.iface.OfferService(identity.Service, identity.Instance)
	case RoleClient:
		if rt != nil && rt.IsStateRegistered() {
			h.iface.RegisterAvailabilityHandler(identity.Service, identity.Instance, h.onAvailability)
			h.iface.RequestService(identity.Service, identity.Instance)
		}
	}

	h.iface.RegisterMessageHandler(identity.Service, someip.AnyInstance, someip.AnyMethod, h.onMessage)

	return h
}

// WithScheduler overrides the default GoScheduler, primarily for tests that
// need a synchronous worker.
func (h *Handler) WithScheduler(s Scheduler) *Handler {
	if s != nil {
		h.scheduler = s
	}
	return h
}

// Recorder observes dispatch activity for offline debugging, decoupled from
// any particular persistence format so the bridge package does not need to
// import the trace package.
type Recorder interface {
	RecordDispatchEvent(kind, detail string)
	RecordTableSnapshot(sizes Sizes)
}

// WithRecorder attaches a dispatch trace recorder; every dispatched QItem
// and table-size refresh is reported to it from the worker goroutine.
func (h *Handler) WithRecorder(r Recorder) *Handler {
	h.recorder = r
	return h
}

// Metrics exposes the handler's dispatch metrics for the HTTP surface.
func (h *Handler) Metrics() *DispatchMetrics { return h.metrics }

// Identity returns the handler's configured identity.
func (h *Handler) Identity() Identity { return h.identity }

// Latch exposes the availability latch so callers (e.g. a request path that
// must block until the remote service is known available) can Wait on it.
func (h *Handler) Latch() *AvailabilityLatch { return h.latch }

// SetAvailabilityOverride forces the availability latch to the given value,
// bypassing onAvailability. This is an administrative escape hatch for the
// control-plane surface, distinct from the production onAvailability path
// that never clears the latch on its own.
func (h *Handler) SetAvailabilityOverride(available bool) {
	h.log.Warn("administrative availability override applied", logging.Bool("available", available))
	h.latch.SetAndNotify(available)
}

// QueueOfferUResource enqueues a uP resource this handler should expose. The
// worker decides, per invariant, whether to call OfferEvent (for
// events/fields) or skip offering (for methods, which are implicitly
// reachable via the registered message handler).
func (h *Handler) QueueOfferUResource(resource uprotocol.UUri) bool {
	h.ensureWorker()
	return h.queue.Push(QItem{Kind: KindOfferUResource, Offer: &resource}, PriorityDefault)
}

// QueueOutboundMsg enqueues a uMessage bound for the SOME/IP side.
func (h *Handler) QueueOutboundMsg(msg *uprotocol.UMessage) bool {
	h.ensureWorker()
	return h.queue.Push(QItem{Kind: KindOutbound, Outbound: msg}, PriorityDefault)
}

// onMessage is the someip.MessageHandler registered at construction; it
// enqueues the inbound SOME/IP message for worker processing.
func (h *Handler) onMessage(msg *someip.Message) {
	h.ensureWorker()
	h.queue.Push(QItem{Kind: KindInbound, Inbound: msg}, PriorityDefault)
}

// onAvailability is the someip.AvailabilityHandler registered for client-role
// handlers. Only a transition to available is meaningful on the production
// path: the source never clears the latch on a false transition.
func (h *Handler) onAvailability(service someip.ServiceID, instance someip.InstanceID, available bool) {
	if !available {
		return
	}
	h.latch.SetAndNotify(true)
}

// OnSubscription backs the someip.SubscriptionHandler registered for each
// offered event/field; it enqueues the subscription event for worker-side table
// updates and returns true to accept every subscription.
func (h *Handler) OnSubscription(eventgroup someip.EventgroupID, subscribed bool) bool {
	h.ensureWorker()
	h.queue.Push(QItem{Kind: KindInboundSubscription, Subscription: &SubscriptionStatus{Eventgroup: eventgroup, IsSubscribed: subscribed}}, PriorityDefault)
	return true
}

// OnSubscriptionStatus backs the someip.SubscriptionStatusHandler registered
// for each new subscription issued by this handler; it enqueues the ack for
// the worker to route.
func (h *Handler) OnSubscriptionStatus(eventgroup someip.EventgroupID, status uint16) {
	h.ensureWorker()
	h.queue.Push(QItem{Kind: KindInboundSubscriptionAck, Subscription: &SubscriptionStatus{Eventgroup: eventgroup, IsSubscribed: status == 0}}, PriorityDefault)
}

// ensureWorker lazily starts the single worker goroutine on first enqueue,
// matching the source's thread-pool-on-first-use startup.
func (h *Handler) ensureWorker() {
	if h.workerStarted.CompareAndSwap(false, true) {
		h.metrics.RecordWorkerStart()
		h.scheduler.Post(h.executor)
	}
}

// Quit requests the worker to stop after draining whatever is already
// queued. It pushes a Stop sentinel while the queue is still accepting
// pushes, then flips the running flag, mirroring the source's stopThread
// ordering exactly.
func (h *Handler) Quit() {
	h.quitOnce.Do(func() {
		h.queue.Push(QItem{Kind: KindStop}, PriorityDefault)
		h.queue.SetRunning(false)
	})
}
