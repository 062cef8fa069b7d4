package domain

import (
	"context"
	"encoding/json"
	"errors"
)

const ChatMessageType = "chat"

var (
	ErrInvalidInput = errors.New("invalid input")
)

// ChatMessage is a stored chat line. It is never modified after it is stored.
type ChatMessage struct {
	Type    string          `json:"type"`
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
	RoomID  string          `json:"roomId"`
}

func NewChatMessage(from, roomID string, payload json.RawMessage) (*ChatMessage, error) {
	if from == "" || roomID == "" {
		return nil, ErrInvalidInput
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	return &ChatMessage{
		Type:    ChatMessageType,
		From:    from,
		Payload: payload,
		RoomID:  roomID,
	}, nil
}

type MessageRepository interface {
	Add(ctx context.Context, message *ChatMessage) error
	GetByRoom(ctx context.Context, roomID string) ([]ChatMessage, error)
	ClearByRoom(ctx context.Context, roomID string) error
	GetAll(ctx context.Context) ([]ChatMessage, error)
	ClearAll(ctx context.Context) error
}
