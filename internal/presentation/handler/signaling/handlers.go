package signaling

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/duet/internal/domain"
	"github.com/hilthontt/duet/internal/infrastructure/json"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
	"github.com/hilthontt/duet/internal/infrastructure/ws"
)

type Handler struct {
	core      *ws.Core
	upgrader  websocket.Upgrader
	clientCfg ws.ClientConfig
	logger    logging.Logger
}

func NewHandler(core *ws.Core, clientCfg ws.ClientConfig, allowedOrigins []string, logger logging.Logger) *Handler {
	return &Handler{
		core: core,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		clientCfg: clientCfg,
		logger:    logger,
	}
}

// originChecker allows every origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS godoc
// @Summary      Open a signaling connection
// @Description  Upgrades to a WebSocket carrying offer, answer, ice-candidate, chat and hang-up messages for one peer in one room
// @Tags         signaling
// @Param        peerId query string true "Client generated peer id"
// @Param        roomId query string true "Room to join (UUID)"
// @Success      101 "Switching Protocols"
// @Failure      400 {object} json.ErrorResponse "Missing or invalid peer id or room id"
// @Router       /chat [get]
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rawPeerID, rawRoomID := query.Get("peerId"), query.Get("roomId")
	if rawPeerID == "" || rawRoomID == "" {
		json.WriteBadRequestError(w, "Missing peer id or room id")
		return
	}

	peerID, err := domain.NormalizePeerID(rawPeerID)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}
	roomID, err := domain.NormalizeRoomID(rawRoomID)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(logging.IO, logging.Connect, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.PeerID:       peerID,
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	// The connection outlives any request deadline set by middleware.
	ctx := context.WithoutCancel(r.Context())

	client := ws.NewClient(conn, peerID, roomID, h.clientCfg, h.logger)
	go client.WritePump()

	if err := h.core.Connect(ctx, client.Connection()); err != nil {
		h.logger.Warn(logging.Signaling, logging.Connect, "connect rejected", map[logging.ExtraKey]any{
			logging.PeerID:       peerID,
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		_ = client.Close()
		return
	}

	client.ReadPump(ctx, h.core)
}
