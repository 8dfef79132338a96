// Package router models the Router collaborator the bridge consumes: service
// state registration, translation between SOME/IP and uProtocol messages, and
// forwarding of translated inbound messages to uProtocol-side consumers.
package router

import (
	"someipbridge/internal/someip"
	"someipbridge/internal/uprotocol"
)

// Translator converts between SOME/IP and uProtocol message shapes. The
// source's MessageTranslator boundary is kept as a separate interface so
// bridges targeting different SOME/IP stacks can supply their own codec.
type Translator interface {
	// TranslateSomeipToUMsgForRequest builds the uMessage delivered to the uP
	// side for an inbound SOME/IP request against the given entity/resource.
	TranslateSomeipToUMsgForRequest(msg *someip.Message, entity uprotocol.UEntity, resource uprotocol.UResource) (*uprotocol.UMessage, error)
	// TranslateSomeipToUMsgForResponse builds the uP response delivered for an
	// inbound SOME/IP response, given the originating uP request.
	TranslateSomeipToUMsgForResponse(msg *someip.Message, requestUMsg *uprotocol.UMessage) (*uprotocol.UMessage, error)
	// TranslateSomeipToUMsgForNotification builds the uP notification for an
	// inbound SOME/IP notification against the subscribed resource.
	TranslateSomeipToUMsgForNotification(msg *someip.Message, entity uprotocol.UEntity, authority uprotocol.UAuthority, resource uprotocol.UResource) (*uprotocol.UMessage, error)
	// TranslateSomeipToUMsgForSubscriptionAck synthesises a subscription-ack
	// uMessage for the given resource.
	TranslateSomeipToUMsgForSubscriptionAck(entity uprotocol.UEntity, authority uprotocol.UAuthority, resource uprotocol.UResource) (*uprotocol.UMessage, error)
	// TranslateUMessageToSomeipMsgForRequest builds the outbound SOME/IP
	// request for a uP request message.
	TranslateUMessageToSomeipMsgForRequest(uMsg *uprotocol.UMessage) (*someip.Message, error)
}

// Router is the external collaborator that owns cross-handler state
// registration and forwards translated inbound messages to uProtocol-side
// consumers.
type Router interface {
	// IsStateRegistered reports whether the uProtocol-side registry has
	// completed registration for this deployment.
	IsStateRegistered() bool
	// RouteInboundMsg forwards a translated uMessage to uProtocol-side
	// consumers (subscribers, RPC callers).
	RouteInboundMsg(uMsg *uprotocol.UMessage) error
	// Translator exposes the SOME/IP <-> uProtocol codec.
	Translator() Translator
}
