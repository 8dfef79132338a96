package router

import (
	"fmt"
	"sync/atomic"

	"someipbridge/internal/uprotocol"
)

// InboundConsumer receives uMessages that RouteInboundMsg has translated and
// forwards them to uProtocol-side consumers (a websocket hub, an in-process
// subscriber registry, etc). Kept as a narrow interface so the local Router
// implementation does not need to know about any particular transport.
type InboundConsumer interface {
	Deliver(uMsg *uprotocol.UMessage) error
}

// LocalRouter is a single-process Router implementation: state registration
// is a simple flag flipped by the process bootstrap once the uProtocol-side
// registry has announced itself, and inbound routing forwards to an injected
// InboundConsumer (typically the uProtocol-side websocket hub).
type LocalRouter struct {
	registered   atomic.Bool
	translator   Translator
	consumer     InboundConsumer
}

// NewLocalRouter constructs a Router backed by the given translator and
// inbound consumer.
func NewLocalRouter(translator Translator, consumer InboundConsumer) *LocalRouter {
	if translator == nil {
		translator = NewByteTranslator()
	}
	return &LocalRouter{translator: translator, consumer: consumer}
}

// SetStateRegistered flips the registration flag; called once the
// uProtocol-side registry has completed handshake with this process.
func (r *LocalRouter) SetStateRegistered(registered bool) {
	if r == nil {
		return
	}
	r.registered.Store(registered)
}

// IsStateRegistered implements Router.
func (r *LocalRouter) IsStateRegistered() bool {
	if r == nil {
		return false
	}
	return r.registered.Load()
}

// RouteInboundMsg implements Router by forwarding to the injected consumer.
func (r *LocalRouter) RouteInboundMsg(uMsg *uprotocol.UMessage) error {
	if r == nil {
		return fmt.Errorf("router is nil")
	}
	if r.consumer == nil {
		//1.- Without a wired consumer there is nowhere to deliver; treat this
		//    as a configuration error rather than silently dropping.
		return fmt.Errorf("no inbound consumer configured")
	}
	return r.consumer.Deliver(uMsg)
}

// Translator implements Router.
func (r *LocalRouter) Translator() Translator {
	if r == nil {
		return nil
	}
	return r.translator
}

var _ Router = (*LocalRouter)(nil)
