package domain

import "time"

type RoomEventType string

const (
	EventPeerJoined  RoomEventType = "peer.joined"
	EventPeerLeft    RoomEventType = "peer.left"
	EventRoomEmptied RoomEventType = "room.emptied"
	EventCallEnded   RoomEventType = "call.ended"
)

// RoomEvent describes a lifecycle change in a signaling room.
type RoomEvent struct {
	Type       RoomEventType `json:"type"`
	RoomID     string        `json:"roomId"`
	PeerID     string        `json:"peerId,omitempty"`
	Peers      int           `json:"peers"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// RoomEventPublisher hands room events to whatever is listening. Publish must
// not block the caller.
type RoomEventPublisher interface {
	Publish(event RoomEvent)
}
