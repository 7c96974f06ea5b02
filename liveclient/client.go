// liveclient/client.go - Reconnecting live client
package liveclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"huntparty/live"
	"huntparty/logger"
	"huntparty/services"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Paused reports whether live updates are suspended while a reconnect is
// pending. UIs show their last known state as stale.
func (s State) Paused() bool {
	return s == StateReconnecting
}

// Handler receives client events. Nil callbacks are skipped. Callbacks run
// on the client's goroutine and must not block for long.
type Handler struct {
	OnState       func(State)
	OnSnapshot    func(*services.Snapshot)
	OnConnected   func(live.Connected)
	OnLeaderboard func(live.LeaderboardUpdated)
	OnRivalry     func(live.RivalryUpdated)
	OnActivity    func(live.ActivityEventCreated)
}

type Options struct {
	// UserID filters rivalry messages. When zero it is taken from the
	// connected message.
	UserID       uint
	Dialer       Dialer
	Fetcher      SnapshotFetcher
	Handler      Handler
	Backoff      *Backoff
	PingInterval time.Duration
}

type Client struct {
	dialer  Dialer
	fetcher SnapshotFetcher
	handler Handler
	backoff *Backoff
	ping    time.Duration

	mu     sync.Mutex
	state  State
	userID uint
}

func New(opts Options) *Client {
	if opts.Backoff == nil {
		opts.Backoff = NewBackoff()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	return &Client{
		dialer:  opts.Dialer,
		fetcher: opts.Fetcher,
		handler: opts.Handler,
		backoff: opts.Backoff,
		ping:    opts.PingInterval,
		userID:  opts.UserID,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed && c.handler.OnState != nil {
		c.handler.OnState(s)
	}
}

func (c *Client) currentUser() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Run connects and follows the live stream until ctx is cancelled,
// reconnecting with backoff whenever the connection drops. Every successful
// connect re-fetches the snapshot before any live message is dispatched;
// nothing missed while disconnected is replayed.
func (c *Client) Run(ctx context.Context) error {
	c.setState(StateConnecting)
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}
		if err != nil && !IsNormalClose(err) {
			logger.Warn("liveclient: %v", err)
		}

		c.setState(StateReconnecting)
		wait := c.backoff.Next()
		logger.Debug("liveclient: reconnecting in %v (attempt %d)", wait, c.backoff.Attempt())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateDisconnected)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	stream, err := c.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	snapshot, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	c.backoff.Reset()
	c.setState(StateConnected)
	if c.handler.OnSnapshot != nil {
		c.handler.OnSnapshot(snapshot)
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.keepAlive(sctx, stream)

	for {
		env, err := stream.Read(sctx)
		if err != nil {
			return err
		}
		c.dispatch(env)
	}
}

func (c *Client) keepAlive(ctx context.Context, stream Stream) {
	ticker := time.NewTicker(c.ping)
	defer ticker.Stop()

	ping, err := live.Encode(live.Ping{})
	if err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := stream.Write(ctx, ping); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Debug("liveclient: ping failed: %v", err)
				}
				return
			}
		}
	}
}

func (c *Client) dispatch(env live.Envelope) {
	msg, err := live.Decode(env)
	if err != nil {
		logger.Debug("liveclient: %v", err)
		return
	}

	switch m := msg.(type) {
	case live.Connected:
		c.mu.Lock()
		if c.userID == 0 {
			c.userID = m.UserID
		}
		c.mu.Unlock()
		if c.handler.OnConnected != nil {
			c.handler.OnConnected(m)
		}
	case live.LeaderboardUpdated:
		if c.handler.OnLeaderboard != nil {
			c.handler.OnLeaderboard(m)
		}
	case live.RivalryUpdated:
		if m.UserID != c.currentUser() {
			return
		}
		if c.handler.OnRivalry != nil {
			c.handler.OnRivalry(m)
		}
	case live.ActivityEventCreated:
		if c.handler.OnActivity != nil {
			c.handler.OnActivity(m)
		}
	case live.Pong:
	}
}
