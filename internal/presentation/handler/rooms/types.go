package rooms

import "time"

// createRoomResponse represents the response after creating a room
type createRoomResponse struct {
	RoomID string `json:"roomId" example:"550e8400-e29b-41d4-a716-446655440000"` // Unique room identifier
}

// membershipRequest names the peer joining or leaving a room
type membershipRequest struct {
	PeerID string `json:"peerId" example:"3f2c7a0e" minLength:"1" maxLength:"128"` // Client generated peer id
}

// roomResponse represents a room and its current members
type roomResponse struct {
	RoomID    string    `json:"roomId" example:"550e8400-e29b-41d4-a716-446655440000"` // Unique room identifier
	Peers     []string  `json:"peers"`                                                 // Peer ids currently in the room
	CreatedAt time.Time `json:"createdAt" example:"2024-01-01T12:00:00Z"`              // Room creation timestamp
}
