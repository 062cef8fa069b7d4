package domain

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/duet/internal/infrastructure/validate"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrInvalidRoom  = errors.New("room id must be a valid UUID")
	ErrRoomCapacity = errors.New("room capacity reached")
)

// Room is the REST facing view of a room: who announced themselves through
// join/leave calls, independent of live signaling connections.
type Room struct {
	ID        string    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
	Peers     []string  `json:"peers"`
}

type RoomRepository interface {
	CreateRoom(ctx context.Context) (*Room, error)
	GetByID(ctx context.Context, roomID string) (*Room, error)
	JoinRoom(ctx context.Context, roomID, peerID string) error
	LeaveRoom(ctx context.Context, roomID, peerID string) error
	RoomPeers(ctx context.Context, roomID string) ([]string, error)
	RoomExists(ctx context.Context, roomID string) bool
}

func NewRoom() *Room {
	return &Room{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Peers:     []string{},
	}
}

// ValidateRoomID reports whether id is a canonical UUID string.
func ValidateRoomID(id string) error {
	if err := validate.UUID()(id); err != nil {
		return ErrInvalidRoom
	}
	return nil
}

// SortedPeers returns the peer set as a sorted slice.
func SortedPeers(peers map[string]struct{}) []string {
	out := make([]string, 0, len(peers))
	for p := range peers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
