package rooms

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/duet/internal/domain"
	"github.com/hilthontt/duet/internal/infrastructure/json"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
)

type Handler struct {
	roomRepository domain.RoomRepository
	logger         logging.Logger
}

func NewHandler(roomRepository domain.RoomRepository, logger logging.Logger) *Handler {
	return &Handler{
		roomRepository: roomRepository,
		logger:         logger,
	}
}

// CreateRoomHandler godoc
// @Summary      Create a new room
// @Description  Creates an empty two-party room and returns its id
// @Tags         rooms
// @Produce      json
// @Success      201 {object} createRoomResponse "Room created successfully"
// @Failure      503 {object} json.ErrorResponse "Room capacity reached"
// @Failure      500 {object} json.ErrorResponse "Internal server error"
// @Router       /room [post]
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomRepository.CreateRoom(r.Context())
	if err != nil {
		h.writeRoomError(w, "", err)
		return
	}

	json.Write(w, http.StatusCreated, createRoomResponse{RoomID: room.ID})
}

// GetRoomHandler godoc
// @Summary      Get a room
// @Description  Returns the room and the peers that joined it
// @Tags         rooms
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Success      200 {object} roomResponse "Room details"
// @Failure      400 {object} json.ErrorResponse "Invalid room id"
// @Failure      404 {object} json.ErrorResponse "Room not found"
// @Router       /room/{roomId} [get]
func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	room, err := h.roomRepository.GetByID(r.Context(), roomID)
	if err != nil {
		h.writeRoomError(w, roomID, err)
		return
	}

	json.Write(w, http.StatusOK, roomResponse{
		RoomID:    room.ID,
		Peers:     room.Peers,
		CreatedAt: room.CreatedAt,
	})
}

// JoinRoomHandler godoc
// @Summary      Join a room
// @Description  Adds a peer to the room's membership
// @Tags         rooms
// @Accept       json
// @Param        roomId path string true "Room ID"
// @Param        request body membershipRequest true "Peer joining the room"
// @Success      204 "Peer joined"
// @Failure      400 {object} json.ErrorResponse "Invalid room or peer id"
// @Failure      404 {object} json.ErrorResponse "Room not found"
// @Router       /room/{roomId}/join [post]
func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID, peerID, ok := membership(w, r)
	if !ok {
		return
	}

	if err := h.roomRepository.JoinRoom(r.Context(), roomID, peerID); err != nil {
		h.writeRoomError(w, roomID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LeaveRoomHandler godoc
// @Summary      Leave a room
// @Description  Removes a peer from the room. The room is deleted once its last peer leaves.
// @Tags         rooms
// @Accept       json
// @Param        roomId path string true "Room ID"
// @Param        request body membershipRequest true "Peer leaving the room"
// @Success      204 "Peer left"
// @Failure      400 {object} json.ErrorResponse "Invalid room or peer id"
// @Router       /room/{roomId}/leave [post]
func (h *Handler) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID, peerID, ok := membership(w, r)
	if !ok {
		return
	}

	if err := h.roomRepository.LeaveRoom(r.Context(), roomID, peerID); err != nil {
		h.writeRoomError(w, roomID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeRoomError(w http.ResponseWriter, roomID string, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		json.WriteNotFoundError(w, err, "Room not found")
	case errors.Is(err, domain.ErrInvalidInput):
		json.WriteValidationError(w, err)
	case errors.Is(err, domain.ErrRoomCapacity):
		h.logger.Warn(logging.Internal, logging.ExternalService, "room capacity reached", nil)
		json.WriteError(w, http.StatusServiceUnavailable, err, "Room capacity reached, try again later")
	default:
		h.logger.Error(logging.Internal, logging.ExternalService, "room operation failed", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
	}
}

func roomIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	roomID := chi.URLParam(r, "roomId")
	if err := domain.ValidateRoomID(roomID); err != nil {
		json.WriteBadRequestError(w, "Invalid room id")
		return "", false
	}
	return roomID, true
}

func membership(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return "", "", false
	}

	var req membershipRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return "", "", false
	}

	peerID, err := domain.NormalizePeerID(req.PeerID)
	if err != nil {
		json.WriteValidationError(w, err)
		return "", "", false
	}

	return roomID, peerID, true
}
