package services

import (
	"context"
	"time"

	"cosmic-chat/internal/domain/user"
	"cosmic-chat/internal/repository"
	"cosmic-chat/pkg/logger"

	"github.com/google/uuid"
)

// Conversation is a derived view, never persisted: the most recent
// message exchanged with each counterpart plus that counterpart's
// profile snapshot.
type Conversation struct {
	OtherUser   user.Snapshot `json:"other_user"`
	LastMessage LastMessage   `json:"last_message"`
}

type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  uuid.UUID `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ConversationService struct {
	messageRepo repository.MessageRepository
	users       *UserService
	messages    *MessageService
	log         *logger.Logger
	scanLimit   int
}

func NewConversationService(messageRepo repository.MessageRepository, users *UserService, messages *MessageService, log *logger.Logger, scanLimit int) *ConversationService {
	if scanLimit <= 0 {
		scanLimit = 500
	}
	return &ConversationService{
		messageRepo: messageRepo,
		users:       users,
		messages:    messages,
		log:         log,
		scanLimit:   scanLimit,
	}
}

// ConversationsFor lists the user's conversations, most recent first.
// A single pass over the newest messages keeps the first row seen per
// counterpart, which is that conversation's latest message.
func (s *ConversationService) ConversationsFor(ctx context.Context, userID uuid.UUID) ([]Conversation, error) {
	msgs, err := s.messageRepo.ListForUser(ctx, userID, s.scanLimit)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{})
	conversations := make([]Conversation, 0, len(msgs))
	for _, m := range msgs {
		otherID := m.SenderID
		if otherID == userID {
			otherID = m.ReceiverID
		}
		if _, ok := seen[otherID]; ok {
			continue
		}
		seen[otherID] = struct{}{}

		snap, err := s.users.GetSnapshot(ctx, otherID)
		if err != nil {
			// A missing counterpart still gets a row; the id is all we
			// can show for it.
			s.log.ErrorfCtx(ctx, "counterpart %s lookup failed: %v", otherID, err)
			snap = user.Snapshot{ID: otherID}
		}

		conversations = append(conversations, Conversation{
			OtherUser: snap,
			LastMessage: LastMessage{
				Content:   s.messages.decryptOrPlaceholder(ctx, m),
				SenderID:  m.SenderID,
				CreatedAt: m.CreatedAt,
			},
		})
	}

	return conversations, nil
}
