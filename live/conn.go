// live/conn.go - Per-connection read/write pumps
package live

import (
	"context"
	"time"

	"huntparty/logger"

	"github.com/gofiber/websocket/v2"
)

const (
	// WebSocket timeouts
	writeWait  = 10 * time.Second // Time allowed to write a message
	pongWait   = 60 * time.Second // Time allowed between reads
	pingPeriod = 30 * time.Second // Send pings at this interval

	maxMessageSize = 4096
)

// Socket is the subset of a websocket connection the pumps use.
// *websocket.Conn from gofiber satisfies it.
type Socket interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// PartyResolver finds the user's current party on connect.
type PartyResolver interface {
	ActivePartyID(ctx context.Context, userID uint) (uint, bool, error)
}

type ServeOptions struct {
	SendBuffer int
	// ResolveTimeout bounds the party lookup on connect.
	ResolveTimeout time.Duration
}

// Serve runs one live session until the socket closes. The connection is
// subscribed to the user's party channel, receives a connected message, and
// is removed from the hub on return. Nothing is replayed: a client that
// reconnects loads current state over HTTP.
func Serve(hub *Hub, sock Socket, userID uint, parties PartyResolver, opts ServeOptions) {
	c := NewConnection(userID, opts.SendBuffer)
	hub.Register(c)

	var partyID *uint
	if parties != nil {
		timeout := opts.ResolveTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(c.ctx, timeout)
		id, ok, err := parties.ActivePartyID(ctx, userID)
		cancel()
		if err != nil {
			logger.Warn("live: resolve party for user %d: %v", userID, err)
		} else if ok {
			hub.JoinPartyChannel(c, id)
			partyID = &id
		}
	}

	logger.Info("live: connection %s opened for user %d", c.ID, userID)
	if err := c.Send(Connected{ConnectionID: c.ID, UserID: userID, PartyID: partyID}); err != nil {
		logger.Warn("live: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(c, sock)
	}()

	readPump(c, sock)

	hub.Unregister(c)
	c.Close()
	<-done
	_ = sock.Close()
	logger.Info("live: connection %s closed for user %d", c.ID, userID)
}

func readPump(c *Connection, sock Socket) {
	defer c.Close()

	sock.SetReadLimit(maxMessageSize)
	_ = sock.SetReadDeadline(time.Now().Add(pongWait))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := sock.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("live: read error on %s: %v", c.ID, err)
			}
			return
		}
		_ = sock.SetReadDeadline(time.Now().Add(pongWait))

		switch env.Type {
		case TypePing:
			if err := c.Send(Pong{}); err != nil {
				logger.Warn("live: %v", err)
			}
		default:
			logger.Debug("live: ignoring %q from %s", env.Type, c.ID)
		}
	}
}

func writePump(c *Connection, sock Socket) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.send:
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sock.WriteJSON(env); err != nil {
				logger.Warn("live: write error on %s: %v", c.ID, err)
				c.Close()
				_ = sock.Close()
				return
			}

		case <-ticker.C:
			if err := sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Warn("live: ping failed on %s: %v", c.ID, err)
				c.Close()
				_ = sock.Close()
				return
			}

		case <-c.Done():
			_ = sock.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
