// liveclient/transport.go - Websocket dialer and snapshot fetcher
package liveclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"huntparty/live"
	"huntparty/services"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const maxFrameSize = 1 << 20

// Stream is one open live connection.
type Stream interface {
	Read(ctx context.Context) (live.Envelope, error)
	Write(ctx context.Context, env live.Envelope) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// SnapshotFetcher loads current party state over HTTP. A nil snapshot with a
// nil error means the user is not in a party.
type SnapshotFetcher interface {
	Fetch(ctx context.Context) (*services.Snapshot, error)
}

// WebsocketDialer connects to the server's /ws endpoint.
type WebsocketDialer struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

func (d *WebsocketDialer) Dial(ctx context.Context) (Stream, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.Token)

	conn, _, err := websocket.Dial(ctx, d.URL, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	conn.SetReadLimit(maxFrameSize)
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Read(ctx context.Context) (live.Envelope, error) {
	var env live.Envelope
	err := wsjson.Read(ctx, s.conn, &env)
	return env, err
}

func (s *wsStream) Write(ctx context.Context, env live.Envelope) error {
	return wsjson.Write(ctx, s.conn, env)
}

func (s *wsStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// IsNormalClose reports whether err is a clean websocket shutdown.
func IsNormalClose(err error) bool {
	status := websocket.CloseStatus(err)
	return status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway
}

// HTTPSnapshotFetcher calls GET /api/parties/current/snapshot.
type HTTPSnapshotFetcher struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type snapshotResponse struct {
	Success  bool               `json:"success"`
	Snapshot *services.Snapshot `json:"snapshot"`
	Error    string             `json:"error"`
}

func (f *HTTPSnapshotFetcher) Fetch(ctx context.Context) (*services.Snapshot, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	url := strings.TrimRight(f.BaseURL, "/") + "/api/parties/current/snapshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.Token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	var body snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		if body.Error == "" {
			body.Error = resp.Status
		}
		return nil, errors.New("fetch snapshot: " + body.Error)
	}
	return body.Snapshot, nil
}
