package live

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	in     chan Envelope
	out    chan Envelope
	closed chan struct{}
	once   sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		in:     make(chan Envelope, 8),
		out:    make(chan Envelope, 32),
		closed: make(chan struct{}),
	}
}

func (s *fakeSocket) ReadJSON(v interface{}) error {
	select {
	case env := <-s.in:
		*v.(*Envelope) = env
		return nil
	case <-s.closed:
		return io.EOF
	}
}

func (s *fakeSocket) WriteJSON(v interface{}) error {
	select {
	case <-s.closed:
		return errors.New("write on closed socket")
	default:
	}
	s.out <- v.(Envelope)
	return nil
}

func (s *fakeSocket) WriteControl(int, []byte, time.Time) error { return nil }
func (s *fakeSocket) SetReadDeadline(time.Time) error             { return nil }
func (s *fakeSocket) SetWriteDeadline(time.Time) error            { return nil }
func (s *fakeSocket) SetReadLimit(int64)                          {}
func (s *fakeSocket) SetPongHandler(func(string) error)           {}

func (s *fakeSocket) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) next(t *testing.T) Message {
	t.Helper()
	select {
	case env := <-s.out:
		msg, err := Decode(env)
		require.NoError(t, err)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

type staticResolver struct {
	partyID uint
	ok      bool
	err     error
}

func (r staticResolver) ActivePartyID(context.Context, uint) (uint, bool, error) {
	return r.partyID, r.ok, r.err
}

func serveAsync(hub *Hub, sock *fakeSocket, userID uint, resolver PartyResolver) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		Serve(hub, sock, userID, resolver, ServeOptions{SendBuffer: 8})
	}()
	return done
}

func TestServe_ConnectedPingAndCleanup(t *testing.T) {
	hub := NewHub()
	sock := newFakeSocket()
	done := serveAsync(hub, sock, 7, staticResolver{partyID: 3, ok: true})

	connected, ok := sock.next(t).(Connected)
	require.True(t, ok)
	assert.Equal(t, uint(7), connected.UserID)
	require.NotNil(t, connected.PartyID)
	assert.Equal(t, uint(3), *connected.PartyID)
	assert.Equal(t, []string{connected.ConnectionID}, hub.Subscribers(3))

	sock.in <- Envelope{Type: TypePing}
	assert.Equal(t, Pong{}, sock.next(t))

	// unknown client frames are ignored
	sock.in <- Envelope{Type: TypeLeaderboardUpdated}

	hub.Broadcast(3, LeaderboardUpdated{PartyID: 3})
	assert.Equal(t, TypeLeaderboardUpdated, sock.next(t).Type())

	require.NoError(t, sock.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the socket closed")
	}
	assert.Empty(t, hub.Subscribers(3))
	assert.Zero(t, hub.ConnectionCount())
}

func TestServe_NoPartyStillConnects(t *testing.T) {
	hub := NewHub()
	sock := newFakeSocket()
	done := serveAsync(hub, sock, 9, staticResolver{err: errors.New("lookup failed")})

	connected, ok := sock.next(t).(Connected)
	require.True(t, ok)
	assert.Nil(t, connected.PartyID)
	assert.Equal(t, 1, hub.ConnectionCount())

	_ = sock.Close()
	<-done
	assert.Zero(t, hub.ConnectionCount())
}
