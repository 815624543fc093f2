package handler

import (
	"net/http"

	"cosmic-chat/internal/domain/message"
	"cosmic-chat/internal/services"
	"cosmic-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MessageHandler handles direct message endpoints.
type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Send persists a message to another user.
func (h *MessageHandler) Send(c *gin.Context) {
	senderID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid receiver id", "INVALID_REQUEST"))
		return
	}

	msg, err := h.service.Send(c.Request.Context(), senderID, receiverID, req.Content)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toMessageResponse(msg)))
}

// History returns the decrypted conversation with the user in the path,
// oldest first.
func (h *MessageHandler) History(c *gin.Context) {
	viewerID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	otherID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	msgs, err := h.service.ListConversation(c.Request.Context(), viewerID, otherID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	out := make([]httpdto.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

// MarkRead marks a single received message as read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	viewerID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), viewerID, messageID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": message.StatusRead}))
}

func toMessageResponse(m message.Message) httpdto.MessageResponse {
	return httpdto.MessageResponse{
		ID:          m.ID.String(),
		SenderID:    m.SenderID.String(),
		ReceiverID:  m.ReceiverID.String(),
		Content:     m.Content,
		IsEncrypted: m.IsEncrypted,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	}
}
