package ws

// Client originated message types.
const (
	Offer        = "offer"
	Answer       = "answer"
	IceCandidate = "ice-candidate"
	Chat         = "chat"
	HangUp       = "hang-up"
)

// Server originated message types.
const (
	PeerIDEvent    = "peer-id"
	MessageHistory = "message-history"
	PeerConnected  = "peer-connected"
	RoomClosed     = "room-closed"
	ErrorEvent     = "error"
)

// Reasons carried by room-closed.
const (
	ReasonPeerDisconnected = "peer-disconnected"
	ReasonCallEnded        = "call-ended"
	ReasonServerShutdown   = "server-shutdown"
)

const invalidJSONMessage = "Invalid JSON format"
