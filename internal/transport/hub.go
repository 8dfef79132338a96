// Package transport implements the uProtocol-side websocket transport: a
// Hub of connected clients that frames and fans out uMessages, mirroring the
// reference broker's connection lifecycle (conn/send-channel, readPump,
// writePump, ping/pong) while carrying none of its game-specific state.
package transport

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"someipbridge/internal/logging"
	"someipbridge/internal/uprotocol"
)

const (
	writeWait          = 10 * time.Second
	pongWaitMultiplier = 2
)

var upgrader = websocket.Upgrader{}

// OutboundSink is the Router-facing dispatcher a decoded inbound frame is
// handed to. Handler.QueueOutboundMsg implements this.
type OutboundSink interface {
	QueueOutboundMsg(msg *uprotocol.UMessage) bool
}

// Authenticator validates an inbound upgrade request and returns a logical
// identifier for the connecting uProtocol client.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

type allowAllAuthenticator struct{}

func (allowAllAuthenticator) Authenticate(*http.Request) (string, error) { return "", nil }

// Client is one connected uProtocol-side websocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
	log  *logging.Logger
}

// HubOption customises Hub construction.
type HubOption func(*Hub)

// WithAuthenticator overrides the default allow-all upgrade authenticator.
func WithAuthenticator(a Authenticator) HubOption {
	return func(h *Hub) {
		if a != nil {
			h.authenticator = a
		}
	}
}

// WithPingInterval overrides the default keepalive ping cadence.
func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// Hub accepts uProtocol client websocket connections, decodes inbound
// frames into uMessages handed to a Router-facing dispatcher, and fans out
// uMessages routed to it to every subscribed client.
type Hub struct {
	log             *logging.Logger
	sink            OutboundSink
	authenticator   Authenticator
	maxPayloadBytes int64
	maxClients      int
	pingInterval    time.Duration

	mu             sync.RWMutex
	clients        map[*Client]bool
	pendingClients int
}

// NewHub constructs a Hub. sink may be nil at construction time and wired
// later via SetOutboundSink, since the bridge handler and the hub are often
// constructed in either order by process bootstrap.
func NewHub(maxPayloadBytes int64, maxClients int, log *logging.Logger, opts ...HubOption) *Hub {
	if log == nil {
		log = logging.NewTestLogger()
	}
	h := &Hub{
		log:             log.With(logging.String("component", "transport_hub")),
		authenticator:   allowAllAuthenticator{},
		maxPayloadBytes: maxPayloadBytes,
		maxClients:      maxClients,
		pingInterval:    30 * time.Second,
		clients:         make(map[*Client]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// SetOutboundSink wires the dispatcher that decoded inbound frames are
// handed to.
func (h *Hub) SetOutboundSink(sink OutboundSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = sink
}

// ClientCount reports the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver implements router.InboundConsumer: a uMessage translated from an
// inbound SOME/IP event is JSON-framed and fanned out to every subscribed
// websocket client.
func (h *Hub) Deliver(uMsg *uprotocol.UMessage) error {
	if uMsg == nil {
		return errors.New("nil uMessage")
	}
	frame, err := json.Marshal(uMsg)
	if err != nil {
		return err
	}
	h.broadcast(frame)
	return nil
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			c.log.Warn("dropping frame: send buffer full")
		}
	}
}

func (h *Hub) deregisterClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ServeWS upgrades the request to a websocket connection and registers the
// resulting client, mirroring the reference broker's serveWS handler shape.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	reqLogger := h.log.With(logging.String("remote_addr", r.RemoteAddr))

	clientID := r.RemoteAddr
	if h.authenticator != nil {
		subject, err := h.authenticator.Authenticate(r)
		if err != nil {
			reqLogger.Warn("rejecting websocket connection: authentication failed", logging.Error(err))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if subject != "" {
			clientID = subject
			reqLogger = reqLogger.With(logging.String("client_subject", subject))
		}
	}

	if h.maxClients > 0 {
		h.mu.Lock()
		if len(h.clients)+h.pendingClients >= h.maxClients {
			h.mu.Unlock()
			reqLogger.Warn("refusing websocket connection: client limit reached", logging.Int("max_clients", h.maxClients))
			http.Error(w, "service unavailable: client limit reached", http.StatusServiceUnavailable)
			return
		}
		h.pendingClients++
		h.mu.Unlock()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.maxClients > 0 {
			h.mu.Lock()
			if h.pendingClients > 0 {
				h.pendingClients--
			}
			h.mu.Unlock()
		}
		reqLogger.Error("websocket upgrade failed", logging.Error(err))
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, 256), id: clientID}
	client.log = reqLogger.With(logging.String("client_id", client.id))

	h.mu.Lock()
	if h.maxClients > 0 && h.pendingClients > 0 {
		h.pendingClients--
	}
	h.clients[client] = true
	h.mu.Unlock()

	if h.maxPayloadBytes > 0 {
		client.conn.SetReadLimit(h.maxPayloadBytes)
	}

	waitDuration := time.Duration(pongWaitMultiplier) * h.pingInterval
	if err := client.conn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
		client.log.Error("failed to set initial read deadline", logging.Error(err))
		_ = client.conn.Close()
		return
	}
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(waitDuration))
	})

	go h.readPump(client, waitDuration)
	go h.writePump(client)
}

func (h *Hub) readPump(client *Client, waitDuration time.Duration) {
	defer func() {
		h.deregisterClient(client)
		_ = client.conn.Close()
	}()
	for {
		messageType, msg, err := client.conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				client.log.Warn("read deadline exceeded", logging.Error(err))
			} else if websocket.IsCloseError(err, websocket.CloseMessageTooBig) || errors.Is(err, websocket.ErrReadLimit) {
				client.log.Warn("closing connection due to oversized payload", logging.Error(err))
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.log.Warn("unexpected websocket close", logging.Error(err))
			} else {
				client.log.Error("read error", logging.Error(err))
			}
			return
		}

		if err := client.conn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
			client.log.Error("failed to extend read deadline", logging.Error(err))
			return
		}

		if messageType != websocket.TextMessage {
			client.log.Debug("dropping non-text message")
			continue
		}

		var uMsg uprotocol.UMessage
		if err := json.Unmarshal(msg, &uMsg); err != nil {
			client.log.Debug("dropping invalid uMessage frame", logging.Error(err))
			continue
		}

		h.mu.RLock()
		sink := h.sink
		h.mu.RUnlock()
		if sink == nil {
			client.log.Debug("dropping frame: no outbound sink wired")
			continue
		}
		if !sink.QueueOutboundMsg(&uMsg) {
			client.log.Warn("outbound queue rejected frame")
		}
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				client.log.Error("failed to set write deadline", logging.Error(err))
				h.deregisterClient(client)
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				client.log.Error("write error", logging.Error(err))
				h.deregisterClient(client)
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				client.log.Warn("ping failure", logging.Error(err))
				h.deregisterClient(client)
				return
			}
		}
	}
}
