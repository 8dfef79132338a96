package bridge

import (
	"someipbridge/internal/logging"
	"someipbridge/internal/router"
	"someipbridge/internal/someip"
	"someipbridge/internal/uprotocol"
)

// dispatch is the worker's exhaustive switch over QItem.Kind, called once
// per drained item with the queue's mutex released. Every branch runs on the
// single worker goroutine, which is why the correlation tables and
// offeredResourcesByID need no locking.
func (h *Handler) dispatch(item QItem) {
	h.metrics.RecordDispatch(item.Kind)
	if h.recorder != nil {
		h.recorder.RecordDispatchEvent(item.Kind.String(), item.detail())
	}
	switch item.Kind {
	case KindOutbound:
		h.dispatchOutbound(item.Outbound)
	case KindInbound:
		h.dispatchInbound(item.Inbound)
	case KindInboundSubscription:
		h.dispatchInboundSubscription(item.Subscription)
	case KindInboundSubscriptionAck:
		h.dispatchInboundSubscriptionAck(item.Subscription)
	case KindOfferUResource:
		h.dispatchOfferUResource(item.Offer)
	case KindStop:
		// No-op sentinel; its only purpose is waking WaitUntilNonEmpty so
		// the loop re-evaluates the running flag.
	}
}

func (h *Handler) dispatchOutbound(msg *uprotocol.UMessage) {
	if msg == nil {
		return
	}
	switch msg.Attributes.Type {
	case uprotocol.Publish:
		resourceID := msg.Attributes.Source.Resource.ID
		eventgroup := someip.EventgroupID(resourceID)
		info, ok := h.tables.OfferedResource(resourceID)
		if !ok || !info.DoesSubscriptionExist() {
			h.log.Warn("dropping publish with no inbound subscribers", logging.Int("resource_id", int(resourceID)))
			return
		}
		h.iface.Notify(h.identity.Service, h.identity.Instance, eventgroup, msg.Payload)

	case uprotocol.Request:
		if msg.Attributes.Sink.Entity.ID == uprotocol.SubscriptionRequestSinkEntityID {
			h.dispatchSubscriptionRequest(msg)
			return
		}
		translator := h.translator()
		if translator == nil {
			return
		}
		someipMsg, err := translator.TranslateUMessageToSomeipMsgForRequest(msg)
		if err != nil || someipMsg == nil {
			return
		}
		if !h.latch.Wait(msg.Attributes.TTL) {
			h.log.Warn("dropping outbound request, service never became available",
				logging.Int("sink_entity", int(msg.Attributes.Sink.Entity.ID)))
			return
		}
		requestID := h.iface.Send(someipMsg)
		h.tables.PutSomeipRequestToUTransportRequest(requestID, msg)

	case uprotocol.Response:
		if msg.Attributes.ReqID == "" {
			return
		}
		origRequest, ok := h.tables.TakeUUIDToSomeipRequest(msg.Attributes.ReqID)
		if !ok {
			return
		}
		h.iface.Send(&someip.Message{
			Service:   origRequest.Service,
			Instance:  origRequest.Instance,
			Method:    origRequest.Method,
			RequestID: origRequest.RequestID,
			Type:      someip.MTResponse,
			Payload:   msg.Payload,
		})
	}
}

// dispatchSubscriptionRequest handles an outbound Request flagged as a
// subscription request for a remote service (Sink entity id equals the
// reserved subscription-request sink). A brand-new subscription registers
// OnSubscriptionStatus for the eventgroup, requests the event and issues a
// SOME/IP Subscribe; a subscription that already exists instead synthesises
// an immediate acknowledgement for the new subscriber, acting on its behalf
// since the remote side was already notified by the first subscriber.
func (h *Handler) dispatchSubscriptionRequest(msg *uprotocol.UMessage) {
	if h.router == nil || !h.router.IsStateRegistered() {
		h.log.Warn("dropping subscription request, router not state-registered")
		return
	}

	eventgroup := someip.EventgroupID(msg.Attributes.Source.Resource.ID)
	resource := msg.Attributes.Source.Resource

	_, existed := h.tables.EnsureRemoteSubscription(eventgroup, resource)
	if !existed {
		h.iface.RegisterSubscriptionStatusHandler(h.identity.Service, h.identity.Instance, eventgroup, someip.MethodID(eventgroup),
			func(_ someip.ServiceID, _ someip.InstanceID, eg someip.EventgroupID, _ someip.MethodID, status uint16) {
				h.OnSubscriptionStatus(eg, status)
			})
		h.iface.RequestEvent(h.identity.Service, h.identity.Instance, someip.MethodID(eventgroup), []someip.EventgroupID{eventgroup}, someip.ETField)
		h.iface.Subscribe(h.identity.Service, h.identity.Instance, eventgroup)
		return
	}

	translator := h.translator()
	if translator == nil {
		return
	}
	ack, err := translator.TranslateSomeipToUMsgForSubscriptionAck(h.identity.Entity, h.identity.Authority, resource)
	if err != nil || ack == nil {
		return
	}
	_ = h.router.RouteInboundMsg(ack)
}

func (h *Handler) dispatchInbound(msg *someip.Message) {
	if msg == nil || h.router == nil {
		return
	}
	translator := h.translator()
	if translator == nil {
		return
	}

	switch msg.Type {
	case someip.MTRequest:
		resource, ok := h.offeredResourcesByID[uint32(msg.Method)]
		if !ok {
			return
		}
		uMsg, err := translator.TranslateSomeipToUMsgForRequest(msg, h.identity.Entity, resource)
		if err != nil || uMsg == nil {
			return
		}
		h.tables.PutUUIDToSomeipRequest(uMsg.Attributes.ID, msg)
		_ = h.router.RouteInboundMsg(uMsg)

	case someip.MTResponse:
		requestUMsg, ok := h.tables.TakeSomeipRequestToUTransportRequest(msg.RequestID)
		if !ok {
			return
		}
		uMsg, err := translator.TranslateSomeipToUMsgForResponse(msg, requestUMsg)
		if err != nil || uMsg == nil {
			return
		}
		_ = h.router.RouteInboundMsg(uMsg)

	case someip.MTNotification:
		eventgroup := msg.Eventgroup()
		info, ok := h.tables.RemoteSubscription(eventgroup)
		if !ok {
			return
		}
		uMsg, err := translator.TranslateSomeipToUMsgForNotification(msg, h.identity.Entity, h.identity.Authority, info.Resource())
		if err != nil || uMsg == nil {
			return
		}
		_ = h.router.RouteInboundMsg(uMsg)
	}
}

func (h *Handler) dispatchInboundSubscription(status *SubscriptionStatus) {
	if status == nil {
		return
	}
	resourceID := uint32(status.Eventgroup)
	info, ok := h.tables.OfferedResource(resourceID)
	if !ok {
		return
	}
	if status.IsSubscribed {
		info.AddSubscriber()
	} else {
		info.RemoveSubscriber()
	}
}

func (h *Handler) dispatchInboundSubscriptionAck(status *SubscriptionStatus) {
	if status == nil || h.router == nil {
		return
	}
	info, ok := h.tables.RemoteSubscription(status.Eventgroup)
	if !ok {
		return
	}
	translator := h.translator()
	if translator == nil {
		return
	}
	ack, err := translator.TranslateSomeipToUMsgForSubscriptionAck(h.identity.Entity, h.identity.Authority, info.Resource())
	if err != nil || ack == nil {
		return
	}
	_ = h.router.RouteInboundMsg(ack)
}

// dispatchOfferUResource offers a uP resource to SOME/IP clients, skipping
// methods: a method is already reachable through the message handler
// registered at construction, so only events/fields register OnSubscription
// for their eventgroup and get an explicit OfferEvent call.
func (h *Handler) dispatchOfferUResource(offer *uprotocol.UUri) {
	if offer == nil {
		return
	}
	resourceID := offer.Resource.ID
	h.tables.OfferResource(resourceID, offer.Resource)
	h.offeredResourcesByID[resourceID] = offer.Resource

	methodID := someip.MethodID(resourceID)
	if h.iface.IsMethod(methodID) {
		return
	}

	eventgroup := someip.EventgroupID(resourceID)
	h.iface.RegisterSubscriptionHandler(h.identity.Service, h.identity.Instance, eventgroup,
		func(_ someip.ClientID, eg someip.EventgroupID, subscribed bool) bool {
			return h.OnSubscription(eg, subscribed)
		})
	h.iface.OfferEvent(h.identity.Service, h.identity.Instance, eventgroup, []someip.EventgroupID{eventgroup}, someip.ETField, 0, false, true, someip.RTUnknown)
}

func (h *Handler) translator() router.Translator {
	if h.router == nil {
		return nil
	}
	return h.router.Translator()
}
