package messages

import "encoding/json"

// chatMessageResponse represents a stored chat message
type chatMessageResponse struct {
	Type    string          `json:"type" example:"chat"`                                   // Always "chat"
	From    string          `json:"from" example:"3f2c7a0e"`                               // Sender peer id
	Payload json.RawMessage `json:"payload" swaggertype:"string" example:"hi"`             // Message payload as sent by the peer
	RoomID  string          `json:"roomId" example:"550e8400-e29b-41d4-a716-446655440000"` // Room the message was sent to
}
