// live/messages.go - Wire messages exchanged over the live channel
package live

import (
	"encoding/json"
	"fmt"

	"huntparty/models"
)

type MessageType string

const (
	TypeConnected            MessageType = "connected"
	TypeLeaderboardUpdated   MessageType = "leaderboard_updated"
	TypeRivalryUpdated       MessageType = "rivalry_updated"
	TypeActivityEventCreated MessageType = "activity_event_created"
	TypePing                 MessageType = "ping"
	TypePong                 MessageType = "pong"
)

// Message is the closed set of live messages. Only this package can add a
// variant, and Decode must handle every one.
type Message interface {
	Type() MessageType
	sealed()
}

type Connected struct {
	ConnectionID string `json:"connection_id"`
	UserID       uint   `json:"user_id"`
	PartyID      *uint  `json:"party_id"`
}

type LeaderboardUpdated struct {
	PartyID uint                      `json:"party_id"`
	Entries []models.LeaderboardEntry `json:"entries"`
}

// RivalryUpdated is addressed to UserID only. Clients drop copies meant for
// someone else.
type RivalryUpdated struct {
	PartyID uint                `json:"party_id"`
	UserID  uint                `json:"user_id"`
	Rivalry *models.RivalryView `json:"rivalry"`
}

type ActivityEventCreated struct {
	Event models.ActivityEvent `json:"event"`
}

type Ping struct{}

type Pong struct{}

func (Connected) Type() MessageType            { return TypeConnected }
func (LeaderboardUpdated) Type() MessageType   { return TypeLeaderboardUpdated }
func (RivalryUpdated) Type() MessageType       { return TypeRivalryUpdated }
func (ActivityEventCreated) Type() MessageType { return TypeActivityEventCreated }
func (Ping) Type() MessageType                 { return TypePing }
func (Pong) Type() MessageType                 { return TypePong }

func (Connected) sealed()            {}
func (LeaderboardUpdated) sealed()   {}
func (RivalryUpdated) sealed()       {}
func (ActivityEventCreated) sealed() {}
func (Ping) sealed()                 {}
func (Pong) sealed()                 {}

// Envelope is the JSON frame on the wire.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func Encode(msg Message) (Envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return Envelope{Type: msg.Type(), Payload: payload}, nil
}

// Decode turns an envelope back into its typed message.
func Decode(env Envelope) (Message, error) {
	var msg Message
	switch env.Type {
	case TypeConnected:
		msg = &Connected{}
	case TypeLeaderboardUpdated:
		msg = &LeaderboardUpdated{}
	case TypeRivalryUpdated:
		msg = &RivalryUpdated{}
	case TypeActivityEventCreated:
		msg = &ActivityEventCreated{}
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
	}

	switch m := msg.(type) {
	case *Connected:
		return *m, nil
	case *LeaderboardUpdated:
		return *m, nil
	case *RivalryUpdated:
		return *m, nil
	case *ActivityEventCreated:
		return *m, nil
	}
	return msg, nil
}
