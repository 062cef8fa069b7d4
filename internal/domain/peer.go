package domain

import (
	"strings"

	"github.com/hilthontt/duet/internal/infrastructure/validate"
)

const maxIdentifierLength = 128

// Transport is the send side of a live peer connection. The router and the
// registries only ever talk to peers through it.
type Transport interface {
	Send(data []byte) error
	IsOpen() bool
}

// Connection is a peer attached to a room over a signaling transport.
type Connection struct {
	PeerID    string
	RoomID    string
	Transport Transport
}

var validateIdentifier = validate.Compose(
	validate.Required(),
	validate.MaxLength(maxIdentifierLength),
	validate.NoSpaces(),
)

// NormalizePeerID validates a client generated peer id. The id itself is
// opaque; only its shape is checked.
func NormalizePeerID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if err := validate.Field("peerId", validateIdentifier)(id); err != nil {
		return "", err
	}
	return id, nil
}

// NormalizeRoomID trims a room id taken from a query string or path and checks
// that it is a UUID as issued by CreateRoom.
func NormalizeRoomID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if err := ValidateRoomID(id); err != nil {
		return "", err
	}
	return id, nil
}
