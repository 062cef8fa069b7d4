package messaging

import "github.com/hilthontt/duet/internal/domain"

const DefaultRoomsExchange = "duet.rooms"

type RoomEventData struct {
	Event domain.RoomEvent `json:"event"`
}
