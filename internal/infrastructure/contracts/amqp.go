package contracts

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	RoomID string `json:"roomId"`
	Data   []byte `json:"data"`
}

// Routing keys for room lifecycle events.
const (
	EventPeerJoined  = "peer.joined"
	EventPeerLeft    = "peer.left"
	EventRoomEmptied = "room.emptied"
	EventCallEnded   = "call.ended"
)
