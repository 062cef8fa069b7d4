package messages

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/duet/internal/domain"
	"github.com/hilthontt/duet/internal/infrastructure/json"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
)

type Handler struct {
	messageRepository domain.MessageRepository
	logger            logging.Logger
}

func NewHandler(messageRepository domain.MessageRepository, logger logging.Logger) *Handler {
	return &Handler{
		messageRepository: messageRepository,
		logger:            logger,
	}
}

// GetRoomMessagesHandler godoc
// @Summary      Get room chat history
// @Description  Returns the retained chat messages of a room in arrival order
// @Tags         messages
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Success      200 {array} chatMessageResponse "Chat history"
// @Failure      400 {object} json.ErrorResponse "Invalid room id"
// @Failure      500 {object} json.ErrorResponse "Internal server error"
// @Router       /messages/{roomId} [get]
func (h *Handler) GetRoomMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := domain.NormalizeRoomID(chi.URLParam(r, "roomId"))
	if err != nil {
		json.WriteBadRequestError(w, "Invalid room id")
		return
	}

	messages, err := h.messageRepository.GetByRoom(r.Context(), roomID)
	if err != nil {
		h.fail(w, err)
		return
	}

	json.Write(w, http.StatusOK, toResponse(messages))
}

// GetAllMessagesHandler godoc
// @Summary      Get all chat history
// @Description  Returns the retained chat messages of every room
// @Tags         messages
// @Produce      json
// @Success      200 {array} chatMessageResponse "Chat history"
// @Failure      500 {object} json.ErrorResponse "Internal server error"
// @Router       /messages [get]
func (h *Handler) GetAllMessagesHandler(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messageRepository.GetAll(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	json.Write(w, http.StatusOK, toResponse(messages))
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Error(logging.Internal, logging.History, "failed to read messages", map[logging.ExtraKey]any{
		logging.ErrorMessage: err.Error(),
	})
	json.WriteInternalError(w, err)
}

func toResponse(messages []domain.ChatMessage) []chatMessageResponse {
	resp := make([]chatMessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, chatMessageResponse{
			Type:    m.Type,
			From:    m.From,
			Payload: m.Payload,
			RoomID:  m.RoomID,
		})
	}
	return resp
}
