package handler

import (
	"net/http"

	"cosmic-chat/internal/services"
	"cosmic-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// ConversationHandler serves the aggregated conversation list.
type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// List returns the caller's conversations, most recent first.
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conversations, err := h.service.ConversationsFor(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	out := make([]httpdto.ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, httpdto.ConversationResponse{
			OtherUser: httpdto.ConversationUser{
				ID:        conv.OtherUser.ID.String(),
				Name:      conv.OtherUser.Name,
				AvatarURL: conv.OtherUser.AvatarURL,
			},
			LastMessage: httpdto.LastMessage{
				Content:   conv.LastMessage.Content,
				SenderID:  conv.LastMessage.SenderID.String(),
				CreatedAt: conv.LastMessage.CreatedAt,
			},
		})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}
