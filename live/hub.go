// live/hub.go - Party channel membership and fan-out
package live

import (
	"context"
	"errors"
	"sync"

	"huntparty/logger"
	"huntparty/services"

	"github.com/google/uuid"
)

var (
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

// Connection is one live session. The hub owns its channel membership; the
// pumps in conn.go own the socket.
type Connection struct {
	ID     string
	UserID uint

	send   chan Envelope
	ctx    context.Context
	cancel context.CancelFunc
}

// NewConnection creates a session with a bounded outbound queue.
func NewConnection(userID uint, buffer int) *Connection {
	if buffer <= 0 {
		buffer = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan Envelope, buffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Outbound exposes the queue the write pump drains.
func (c *Connection) Outbound() <-chan Envelope {
	return c.send
}

// Done is closed once the connection is shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Connection) Close() {
	c.cancel()
}

// enqueue never blocks. A full queue or a closed connection drops env.
func (c *Connection) enqueue(env Envelope) error {
	select {
	case <-c.ctx.Done():
		return &services.TransportError{ConnectionID: c.ID, MessageType: string(env.Type), Err: ErrConnectionClosed}
	default:
	}

	select {
	case c.send <- env:
		return nil
	default:
		return &services.TransportError{ConnectionID: c.ID, MessageType: string(env.Type), Err: ErrSendBufferFull}
	}
}

// Send encodes and queues msg for this connection only.
func (c *Connection) Send(msg Message) error {
	env, err := Encode(msg)
	if err != nil {
		return err
	}
	return c.enqueue(env)
}

// Hub maps party channels to their subscribed connections. Sends happen on
// a snapshot taken under the lock, never while holding it.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	channels map[uint]map[string]*Connection
	// connection id -> party id
	membership map[string]uint
}

func NewHub() *Hub {
	return &Hub{
		conns:      make(map[string]*Connection),
		channels:   make(map[uint]map[string]*Connection),
		membership: make(map[string]uint),
	}
}

func (h *Hub) Register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID] = c
}

// Unregister drops the connection and its channel subscription.
func (h *Hub) Unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if partyID, ok := h.membership[c.ID]; ok {
		h.removeLocked(c.ID, partyID)
	}
	delete(h.conns, c.ID)
}

// JoinPartyChannel subscribes c to partyID, leaving any other channel first.
// Joining the current channel again is a no-op, as is joining with a
// connection that is closed or no longer registered.
func (h *Hub) JoinPartyChannel(c *Connection, partyID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c.ID]; !ok || c.ctx.Err() != nil {
		return
	}
	if current, ok := h.membership[c.ID]; ok {
		if current == partyID {
			return
		}
		h.removeLocked(c.ID, current)
	}

	subs, ok := h.channels[partyID]
	if !ok {
		subs = make(map[string]*Connection)
		h.channels[partyID] = subs
	}
	subs[c.ID] = c
	h.membership[c.ID] = partyID
	logger.Debug("connection %s joined party channel %d", c.ID, partyID)
}

// LeavePartyChannel unsubscribes c. Leaving a channel c is not in is a no-op.
func (h *Hub) LeavePartyChannel(c *Connection, partyID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.membership[c.ID]; ok && current == partyID {
		h.removeLocked(c.ID, partyID)
		logger.Debug("connection %s left party channel %d", c.ID, partyID)
	}
}

func (h *Hub) removeLocked(connID string, partyID uint) {
	delete(h.membership, connID)
	if subs, ok := h.channels[partyID]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(h.channels, partyID)
		}
	}
}

// AttachUser subscribes every open connection of the user to partyID.
func (h *Hub) AttachUser(userID, partyID uint) {
	for _, c := range h.userConnections(userID) {
		h.JoinPartyChannel(c, partyID)
	}
}

// DetachUser unsubscribes the user's connections from partyID.
func (h *Hub) DetachUser(userID, partyID uint) {
	for _, c := range h.userConnections(userID) {
		h.LeavePartyChannel(c, partyID)
	}
}

func (h *Hub) userConnections(userID uint) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Connection
	for _, c := range h.conns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) subscribers(partyID uint, filter func(*Connection) bool) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.channels[partyID]
	out := make([]*Connection, 0, len(subs))
	for _, c := range subs {
		if filter == nil || filter(c) {
			out = append(out, c)
		}
	}
	return out
}

// Broadcast queues msg for every subscriber of the party channel and
// returns how many accepted it. Failed sends are logged and dropped.
func (h *Hub) Broadcast(partyID uint, msg Message) int {
	return h.deliver(h.subscribers(partyID, nil), msg)
}

// SendToUser queues msg for the user's connections in the party channel.
func (h *Hub) SendToUser(partyID, userID uint, msg Message) int {
	targets := h.subscribers(partyID, func(c *Connection) bool { return c.UserID == userID })
	return h.deliver(targets, msg)
}

func (h *Hub) deliver(targets []*Connection, msg Message) int {
	if len(targets) == 0 {
		return 0
	}
	env, err := Encode(msg)
	if err != nil {
		logger.Error("live: %v", err)
		return 0
	}

	delivered := 0
	for _, c := range targets {
		if err := c.enqueue(env); err != nil {
			logger.Warn("live: %v", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Subscribers lists connection ids subscribed to the party channel.
func (h *Hub) Subscribers(partyID uint) []string {
	subs := h.subscribers(partyID, nil)
	ids := make([]string, 0, len(subs))
	for _, c := range subs {
		ids = append(ids, c.ID)
	}
	return ids
}

// ChannelOf returns the party channel c is subscribed to.
func (h *Hub) ChannelOf(c *Connection) (uint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	partyID, ok := h.membership[c.ID]
	return partyID, ok
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
