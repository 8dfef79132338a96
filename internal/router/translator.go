package router

import (
	"fmt"

	"someipbridge/internal/someip"
	"someipbridge/internal/uprotocol"
)

// ByteTranslator implements Translator using the ordered-byte-sequence
// payload conversion rule from the external interface spec: the outbound
// payload is always uMessage.Payload[0..n] verbatim, endianness handled
// entirely by the SOME/IP side. Attribute translation fills in the minimum
// uProtocol envelope fields the dispatch handlers and tests inspect.
type ByteTranslator struct{}

// NewByteTranslator constructs the default byte-copy translator.
func NewByteTranslator() Translator { return ByteTranslator{} }

// TranslateSomeipToUMsgForRequest builds a uP request from an inbound SOME/IP
// request targeting the given entity/resource.
func (ByteTranslator) TranslateSomeipToUMsgForRequest(msg *someip.Message, entity uprotocol.UEntity, resource uprotocol.UResource) (*uprotocol.UMessage, error) {
	if msg == nil {
		return nil, fmt.Errorf("nil someip request")
	}
	return &uprotocol.UMessage{
		Attributes: uprotocol.Attributes{
			ID:   uprotocol.NewMessageID(),
			Type: uprotocol.Request,
			Sink: uprotocol.UUri{Entity: entity, Resource: resource},
		},
		Payload: append([]byte(nil), msg.Payload...),
	}, nil
}

// TranslateSomeipToUMsgForResponse builds the uP response delivered for an
// inbound SOME/IP response, correlating it against the originating request.
func (ByteTranslator) TranslateSomeipToUMsgForResponse(msg *someip.Message, requestUMsg *uprotocol.UMessage) (*uprotocol.UMessage, error) {
	if msg == nil {
		return nil, fmt.Errorf("nil someip response")
	}
	if requestUMsg == nil {
		return nil, fmt.Errorf("nil originating request")
	}
	return &uprotocol.UMessage{
		Attributes: uprotocol.Attributes{
			ID:     uprotocol.NewMessageID(),
			Type:   uprotocol.Response,
			Source: requestUMsg.Attributes.Sink,
			Sink:   requestUMsg.Attributes.Source,
			ReqID:  requestUMsg.Attributes.ID,
		},
		Payload: append([]byte(nil), msg.Payload...),
	}, nil
}

// TranslateSomeipToUMsgForNotification builds the uP notification for an
// inbound SOME/IP notification, attributed to the subscribed resource.
func (ByteTranslator) TranslateSomeipToUMsgForNotification(msg *someip.Message, entity uprotocol.UEntity, authority uprotocol.UAuthority, resource uprotocol.UResource) (*uprotocol.UMessage, error) {
	if msg == nil {
		return nil, fmt.Errorf("nil someip notification")
	}
	return &uprotocol.UMessage{
		Attributes: uprotocol.Attributes{
			ID:     uprotocol.NewMessageID(),
			Type:   uprotocol.Publish,
			Source: uprotocol.UUri{Entity: entity, Authority: authority, Resource: resource},
		},
		Payload: append([]byte(nil), msg.Payload...),
	}, nil
}

// TranslateSomeipToUMsgForSubscriptionAck synthesises a subscription-ack
// uMessage for the given resource; it carries no payload, only attribution.
func (ByteTranslator) TranslateSomeipToUMsgForSubscriptionAck(entity uprotocol.UEntity, authority uprotocol.UAuthority, resource uprotocol.UResource) (*uprotocol.UMessage, error) {
	return &uprotocol.UMessage{
		Attributes: uprotocol.Attributes{
			ID:     uprotocol.NewMessageID(),
			Type:   uprotocol.Publish,
			Source: uprotocol.UUri{Entity: entity, Authority: authority, Resource: resource},
		},
	}, nil
}

// TranslateUMessageToSomeipMsgForRequest builds the outbound SOME/IP request
// for a uP request message, copying the payload byte-for-byte.
func (ByteTranslator) TranslateUMessageToSomeipMsgForRequest(uMsg *uprotocol.UMessage) (*someip.Message, error) {
	if uMsg == nil {
		return nil, fmt.Errorf("nil uMessage")
	}
	return &someip.Message{
		Service:  someip.ServiceID(uMsg.Attributes.Sink.Entity.ID),
		Instance: someip.InstanceIDPerSpec,
		Method:   someip.MethodID(uMsg.Attributes.Sink.Resource.ID),
		Type:     someip.MTRequest,
		Payload:  append([]byte(nil), uMsg.Payload...),
	}, nil
}

var _ Translator = ByteTranslator{}
