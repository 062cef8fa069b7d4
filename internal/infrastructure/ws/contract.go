package ws

import (
	"encoding/json"

	"github.com/hilthontt/duet/internal/domain"
)

// InboundMessage is what a peer sends over its transport. Any "from" field is
// ignored; the router stamps the sender itself.
type InboundMessage struct {
	Type    string          `json:"type"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSMessage is the outbound envelope. Only the fields relevant to Type are set.
type WSMessage struct {
	Type     string               `json:"type"`
	From     string               `json:"from,omitempty"`
	Payload  json.RawMessage      `json:"payload,omitempty"`
	PeerID   string               `json:"peerId,omitempty"`
	Messages []domain.ChatMessage `json:"messages,omitempty"`
	Reason   string               `json:"reason,omitempty"`
	Error    string               `json:"error,omitempty"`
}

func NewPeerID(peerID string) *WSMessage {
	return &WSMessage{
		Type:   PeerIDEvent,
		PeerID: peerID,
	}
}

func NewMessageHistory(messages []domain.ChatMessage) *WSMessage {
	return &WSMessage{
		Type:     MessageHistory,
		Messages: messages,
	}
}

func NewPeerConnected(peerID string) *WSMessage {
	return &WSMessage{
		Type:   PeerConnected,
		PeerID: peerID,
	}
}

// NewForward relays an offer, answer or ICE candidate. The payload is passed
// through untouched.
func NewForward(messageType, from string, payload json.RawMessage) *WSMessage {
	return &WSMessage{
		Type:    messageType,
		From:    from,
		Payload: payload,
	}
}

func NewHangUp(from string) *WSMessage {
	return &WSMessage{
		Type: HangUp,
		From: from,
	}
}

func NewRoomClosed(reason string) *WSMessage {
	return &WSMessage{
		Type:   RoomClosed,
		Reason: reason,
	}
}

func NewError(message string) *WSMessage {
	return &WSMessage{
		Type:  ErrorEvent,
		Error: message,
	}
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
